package app

import "strings"

// Route is one of the two views.
type Route string

const (
	RouteMap   Route = "/2d"
	RouteGlobe Route = "/3d"
)

// Routes lists the navigation entries in display order.
var Routes = []Route{RouteMap, RouteGlobe}

// Resolve maps a path to its route. The root path redirects to the map.
func Resolve(path string) (Route, bool) {
	path = strings.TrimSuffix(strings.TrimSpace(path), "/")
	switch path {
	case "", string(RouteMap):
		return RouteMap, true
	case string(RouteGlobe):
		return RouteGlobe, true
	}
	return "", false
}

func (r Route) Title() string {
	if r == RouteGlobe {
		return "3D Globe"
	}
	return "2D Map"
}

// Next is the route Tab switches to.
func (r Route) Next() Route {
	if r == RouteGlobe {
		return RouteMap
	}
	return RouteGlobe
}
