package crs

import "math"

// Projection converts between a CRS's native coordinates and WGS84 lon/lat degrees.
type Projection interface {
	ToWGS84(x, y float64) (lon, lat float64)
	FromWGS84(lon, lat float64) (x, y float64)
}

type geographic struct{}

func (geographic) ToWGS84(x, y float64) (lon, lat float64)   { return x, y }
func (geographic) FromWGS84(lon, lat float64) (x, y float64) { return lon, lat }

const (
	earthCircumference = 40075016.685578488
	originShift        = earthCircumference / 2.0
	maxMercatorLat     = 85.05112877980659
)

type webMercator struct{}

func (webMercator) ToWGS84(x, y float64) (lon, lat float64) {
	lon = (x / originShift) * 180.0
	lat = (y / originShift) * 180.0
	lat = 180.0 / math.Pi * (2.0*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2.0)
	return
}

func (webMercator) FromWGS84(lon, lat float64) (x, y float64) {
	lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
	x = lon * originShift / 180.0
	y = math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * originShift / 180.0
	return
}

// WGS84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563

	utmK0             = 0.9996
	utmFalseEasting   = 500000.0
	utmFalseNorthingS = 10000000.0
)

var (
	e2  = wgs84F * (2 - wgs84F)
	e4  = e2 * e2
	e6  = e4 * e2
	ep2 = e2 / (1 - e2)
)

// utm is transverse mercator on a 6° zone (Snyder, USGS PP 1395, eq. 8-9..8-25).
type utm struct {
	zone  int
	south bool
}

func (u utm) centralMeridian() float64 {
	return float64(-183 + 6*u.zone)
}

func meridianArc(phi float64) float64 {
	return wgs84A * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

func (u utm) FromWGS84(lon, lat float64) (x, y float64) {
	phi := lat * math.Pi / 180
	dl := (lon - u.centralMeridian()) * math.Pi / 180

	sin, cos, tan := math.Sin(phi), math.Cos(phi), math.Tan(phi)
	n := wgs84A / math.Sqrt(1-e2*sin*sin)
	t := tan * tan
	c := ep2 * cos * cos
	a := dl * cos
	m := meridianArc(phi)

	x = utmK0*n*(a+(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120) + utmFalseEasting
	y = utmK0 * (m + n*tan*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	if u.south {
		y += utmFalseNorthingS
	}
	return x, y
}

func (u utm) ToWGS84(x, y float64) (lon, lat float64) {
	if u.south {
		y -= utmFalseNorthingS
	}
	m := y / utmK0
	mu := m / (wgs84A * (1 - e2/4 - 3*e4/64 - 5*e6/256))
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	phi1 := mu + (3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin, cos, tan := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	c1 := ep2 * cos * cos
	t1 := tan * tan
	n1 := wgs84A / math.Sqrt(1-e2*sin*sin)
	r1 := wgs84A * (1 - e2) / math.Pow(1-e2*sin*sin, 1.5)
	d := (x - utmFalseEasting) / (n1 * utmK0)

	phi := phi1 - (n1*tan/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	dl := (d - (1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cos

	return u.centralMeridian() + dl*180/math.Pi, phi * 180 / math.Pi
}
