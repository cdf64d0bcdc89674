package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// --- TransportServer ---

// RouteInput names the two ends of a journey.
type RouteInput struct {
	Source      string `json:"source" jsonschema:"city the journey starts from"`
	Destination string `json:"destination" jsonschema:"city the journey ends in"`
}

// Flight is one flight option.
type Flight struct {
	Airline   string  `json:"airline"`
	FlightNo  string  `json:"flight_no"`
	Departure string  `json:"departure"`
	Arrival   string  `json:"arrival"`
	PriceUSD  float64 `json:"price_usd"`
}

// FlightDetailsOutput lists flights for a route.
type FlightDetailsOutput struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Flights     []Flight `json:"flights"`
}

// Bus is one inter-city bus option.
type Bus struct {
	Operator  string  `json:"operator"`
	Departure string  `json:"departure"`
	Arrival   string  `json:"arrival"`
	PriceUSD  float64 `json:"price_usd"`
}

// BusDetailsOutput lists buses for a route.
type BusDetailsOutput struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Buses       []Bus  `json:"buses"`
}

func flightDetails(_ context.Context, _ *mcp.CallToolRequest, in RouteInput) (*mcp.CallToolResult, FlightDetailsOutput, error) {
	return nil, FlightDetailsOutput{
		Source:      in.Source,
		Destination: in.Destination,
		Flights: []Flight{
			{Airline: "Air Sample", FlightNo: "AS123", Departure: "09:00", Arrival: "11:30", PriceUSD: 150},
			{Airline: "Demo Air", FlightNo: "DA456", Departure: "18:45", Arrival: "21:15", PriceUSD: 175},
		},
	}, nil
}

func busDetails(_ context.Context, _ *mcp.CallToolRequest, in RouteInput) (*mcp.CallToolResult, BusDetailsOutput, error) {
	return nil, BusDetailsOutput{
		Source:      in.Source,
		Destination: in.Destination,
		Buses: []Bus{
			{Operator: "Sample Travels", Departure: "07:00", Arrival: "13:00", PriceUSD: 35},
			{Operator: "Demo Bus Co.", Departure: "23:00", Arrival: "05:30", PriceUSD: 32},
		},
	}, nil
}

// --- SightseeingServer ---

// PlacesInput is the destination to find sights for.
type PlacesInput struct {
	Query string `json:"query" jsonschema:"city or region to get recommendations for"`
}

// Place is one recommended sight.
type Place struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Notes    string `json:"notes"`
}

// PlacesOutput is the curated list for a query.
type PlacesOutput struct {
	Query           string  `json:"query"`
	Recommendations []Place `json:"recommendations"`
}

var places = map[string][]Place{
	"paris": {
		{Name: "Eiffel Tower", Category: "Landmark", Notes: "Book tickets in advance"},
		{Name: "Louvre Museum", Category: "Museum", Notes: "Closed Tuesdays"},
		{Name: "Montmartre", Category: "Neighborhood", Notes: "Great for sunset views"},
	},
	"rome": {
		{Name: "Colosseum", Category: "Landmark", Notes: "Try the underground tour"},
		{Name: "Pantheon", Category: "Historic Temple", Notes: "Free entry"},
		{Name: "Trastevere", Category: "Neighborhood", Notes: "Charming evening vibe"},
	},
	"goa": {
		{Name: "Baga Beach", Category: "Beach", Notes: "Water-sports hub"},
		{Name: "Basilica of Bom Jesus", Category: "UNESCO Church", Notes: "Baroque architecture"},
		{Name: "Dudhsagar Falls", Category: "Waterfall", Notes: "Best just after monsoon"},
	},
}

var defaultPlaces = []Place{
	{Name: "Central Park", Category: "Park", Notes: "Iconic urban green space"},
	{Name: "City Museum", Category: "Museum", Notes: "Check special exhibits"},
	{Name: "Old Town Market", Category: "Market", Notes: "Local crafts & street food"},
}

func placesToSee(_ context.Context, _ *mcp.CallToolRequest, in PlacesInput) (*mcp.CallToolResult, PlacesOutput, error) {
	recs, ok := places[strings.ToLower(strings.TrimSpace(in.Query))]
	if !ok {
		recs = defaultPlaces
	}
	return nil, PlacesOutput{Query: in.Query, Recommendations: recs}, nil
}

// --- EmployeeServer ---

// AdditionInput holds the two addends.
type AdditionInput struct {
	A int `json:"a"`
	B int `json:"b"`
}

// AdditionOutput holds the sum.
type AdditionOutput struct {
	Result int `json:"result"`
}

// EmployeesInput optionally narrows the directory to one name.
type EmployeesInput struct {
	Name string `json:"name,omitempty" jsonschema:"employee name, case-insensitive; empty lists everyone"`
}

// Employee is one directory entry.
type Employee struct {
	ID       string `json:"emp_id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// EmployeesOutput carries matching employees, or a message when none match.
type EmployeesOutput struct {
	Employees []Employee `json:"employees"`
	Message   string     `json:"message,omitempty"`
}

var directory = []Employee{
	{ID: "E003", Name: "Alex", Location: "Texas"},
	{ID: "E002", Name: "Coop", Location: "California"},
	{ID: "E009", Name: "Steve", Location: "Hawkins"},
}

func addition(_ context.Context, _ *mcp.CallToolRequest, in AdditionInput) (*mcp.CallToolResult, AdditionOutput, error) {
	return nil, AdditionOutput{Result: in.A + in.B}, nil
}

func employees(_ context.Context, _ *mcp.CallToolRequest, in EmployeesInput) (*mcp.CallToolResult, EmployeesOutput, error) {
	if in.Name == "" {
		return nil, EmployeesOutput{Employees: directory}, nil
	}
	for _, e := range directory {
		if strings.EqualFold(e.Name, in.Name) {
			return nil, EmployeesOutput{Employees: []Employee{e}}, nil
		}
	}
	return nil, EmployeesOutput{Employees: []Employee{}, Message: fmt.Sprintf("Employee not found: %s", in.Name)}, nil
}
