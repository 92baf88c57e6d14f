// Package geo converts between latitude/longitude and the 3D frame used by the globe.
//
// The frame is right-handed with +Y through the north pole. Longitude 0 sits on +X and
// longitude -90 faces the default camera on +Z.
package geo

import "math"

const (
	deg = math.Pi / 180
	rad = 180 / math.Pi
)

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{v.X * k, v.Y * k, v.Z * k}
}

func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// ClampLat limits lat to [-90, 90].
func ClampLat(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

// NormalizeLon returns lon unchanged inside [-180, 180] and wraps anything else
// into [-180, 180).
func NormalizeLon(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Project places (lat, lon) on a sphere of the given radius.
// Out-of-range latitude is clamped and longitude is wrapped.
func Project(lat, lon, radius float64) Vec3 {
	phi := (90 - ClampLat(lat)) * deg
	theta := (NormalizeLon(lon) + 180) * deg

	return Vec3{
		X: -radius * math.Sin(phi) * math.Cos(theta),
		Y: radius * math.Cos(phi),
		Z: radius * math.Sin(phi) * math.Sin(theta),
	}
}

// Unproject is the inverse of Project. The radius is discarded. Points on the
// polar axis report longitude 0.
func Unproject(v Vec3) (lat, lon float64) {
	r := v.Len()
	if r == 0 {
		return 0, 0
	}
	lat = 90 - math.Acos(math.Max(-1, math.Min(1, v.Y/r)))*rad
	if math.Abs(v.X) < 1e-12 && math.Abs(v.Z) < 1e-12 {
		return lat, 0
	}
	theta := math.Atan2(v.Z, -v.X) * rad
	return lat, NormalizeLon(theta - 180)
}

// Equirect maps (lat, lon) to texture coordinates in [0,1]. u=0 is the -180 seam,
// v=0 is the north pole.
func Equirect(lat, lon float64) (u, v float64) {
	u = (NormalizeLon(lon) + 180) / 360
	v = (90 - ClampLat(lat)) / 180
	return u, v
}

// ApparentRadius is the on-screen radius, as a fraction of the half viewport height,
// of a sphere of radius r seen from distance d through a vertical field of view of fov degrees.
func ApparentRadius(r, d, fov float64) float64 {
	if d <= r {
		return math.Inf(1)
	}
	half := math.Tan(fov / 2 * deg)
	return math.Tan(math.Asin(r/d)) / half
}

// Camera orbits the origin. Yaw turns around +Y, Pitch tilts around +X; both in degrees.
// A world point w is seen at Rx(Pitch)·Ry(Yaw)·w with the viewer on +Z.
type Camera struct {
	Yaw   float64
	Pitch float64
}

const MaxPitch = 89.0

// Rotate applies the drag deltas in degrees. Pitch stays within ±MaxPitch.
func (c *Camera) Rotate(dYaw, dPitch float64) {
	c.Yaw = NormalizeLon(c.Yaw + dYaw)
	c.Pitch = math.Max(-MaxPitch, math.Min(MaxPitch, c.Pitch+dPitch))
}

// Face turns the camera so that (lat, lon) is in the middle of the view.
func (c *Camera) Face(lat, lon float64) {
	c.Yaw = NormalizeLon(-90 - lon)
	c.Pitch = math.Max(-MaxPitch, math.Min(MaxPitch, ClampLat(lat)))
}

// View transforms a world point into view space.
func (c Camera) View(w Vec3) Vec3 {
	sy, cy := math.Sincos(c.Yaw * deg)
	sp, cp := math.Sincos(c.Pitch * deg)

	x := w.X*cy + w.Z*sy
	z := -w.X*sy + w.Z*cy

	return Vec3{
		X: x,
		Y: w.Y*cp - z*sp,
		Z: w.Y*sp + z*cp,
	}
}

// World transforms a view-space point back into the world frame.
func (c Camera) World(v Vec3) Vec3 {
	sy, cy := math.Sincos(c.Yaw * deg)
	sp, cp := math.Sincos(c.Pitch * deg)

	y := v.Y*cp + v.Z*sp
	z := -v.Y*sp + v.Z*cp

	return Vec3{
		X: v.X*cy - z*sy,
		Y: y,
		Z: v.X*sy + z*cy,
	}
}
