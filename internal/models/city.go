package models

// DefaultCity is used when a caller does not name a city; it is also the base market.
const DefaultCity = "Coimbatore"

// City is a supported market location
type City struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CityRegistry is the static, ordered set of supported cities.
// It is immutable once built.
type CityRegistry struct {
	cities []City
	byName map[string]City
}

// NewCityRegistry builds a registry preserving the given order.
// Later duplicates of a name are ignored.
func NewCityRegistry(cities []City) *CityRegistry {
	r := &CityRegistry{byName: make(map[string]City, len(cities))}
	for _, c := range cities {
		if _, dup := r.byName[c.Name]; dup {
			continue
		}
		r.cities = append(r.cities, c)
		r.byName[c.Name] = c
	}
	return r
}

// DefaultCities returns the Coimbatore-region markets served by the application.
func DefaultCities() *CityRegistry {
	return NewCityRegistry([]City{
		{Name: "Coimbatore", Latitude: 11.0168, Longitude: 76.9558},
		{Name: "Pollachi", Latitude: 10.6686, Longitude: 77.0064},
		{Name: "Tiruppur", Latitude: 11.1085, Longitude: 77.3411},
		{Name: "Erode", Latitude: 11.3410, Longitude: 77.7172},
		{Name: "Salem", Latitude: 11.6643, Longitude: 78.1460},
		{Name: "Madurai", Latitude: 9.9252, Longitude: 78.1198},
		{Name: "Karur", Latitude: 10.9603, Longitude: 78.0766},
		{Name: "Dindigul", Latitude: 10.3676, Longitude: 77.9800},
		{Name: "Nilgiris", Latitude: 11.4000, Longitude: 76.7000},
		{Name: "Udumalpet", Latitude: 10.9450, Longitude: 77.2800},
	})
}

// Lookup returns the city with the given name
func (r *CityRegistry) Lookup(name string) (City, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Names returns city names in registry order
func (r *CityRegistry) Names() []string {
	names := make([]string, len(r.cities))
	for i, c := range r.cities {
		names[i] = c.Name
	}
	return names
}

// All returns a copy of the cities in registry order
func (r *CityRegistry) All() []City {
	out := make([]City, len(r.cities))
	copy(out, r.cities)
	return out
}

// Len returns the number of cities
func (r *CityRegistry) Len() int {
	return len(r.cities)
}
