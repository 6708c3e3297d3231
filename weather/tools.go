package weather

import (
	"context"

	"github.com/shaharia-lab/weather-mcp/mcp"
)

const (
	ToolCurrentWeather  = "get_current_weather"
	ToolWeatherForecast = "get_weather_forecast"
	ToolCurrentDatetime = "get_current_datetime"
)

const locationDescription = "The city and state, e.g. San Francisco, CA"

// Tools returns the tool table backed by g, in advertised order.
func Tools(g *Generator) []mcp.Tool {
	minDays, maxDays := minForecastDays, maxForecastDays

	return []mcp.Tool{
		{
			Name:        ToolCurrentWeather,
			Description: "Get the current weather for a specific location",
			Parameters: []mcp.ToolParameter{
				{Name: "location", Type: mcp.ParamString, Description: locationDescription, Required: true},
			},
			Handler: func(ctx context.Context, req mcp.ToolRequest) (any, error) {
				location := req.Arguments.String("location")
				req.Logger.WithFields(map[string]interface{}{"location": location}).Debug("Generating current weather")
				return g.CurrentWeather(location), nil
			},
		},
		{
			Name:        ToolWeatherForecast,
			Description: "Get the weather forecast for a specific location",
			Parameters: []mcp.ToolParameter{
				{Name: "location", Type: mcp.ParamString, Description: locationDescription, Required: true},
				{
					Name:        "days",
					Type:        mcp.ParamInteger,
					Description: "Number of days to forecast (1-7)",
					Default:     defaultForecastDays,
					Minimum:     &minDays,
					Maximum:     &maxDays,
				},
			},
			Handler: func(ctx context.Context, req mcp.ToolRequest) (any, error) {
				location := req.Arguments.String("location")
				days := req.Arguments.Int("days")
				req.Logger.WithFields(map[string]interface{}{
					"location": location,
					"days":     days,
				}).Debug("Generating forecast")
				return g.Forecast(location, days), nil
			},
		},
		{
			Name:        ToolCurrentDatetime,
			Description: "Get the current date and time",
			Parameters: []mcp.ToolParameter{
				{Name: "timezone", Type: mcp.ParamString, Description: "Timezone (e.g., 'UTC', 'local')", Default: "local"},
			},
			Handler: func(ctx context.Context, req mcp.ToolRequest) (any, error) {
				return g.CurrentDatetime(req.Arguments.String("timezone")), nil
			},
		},
	}
}

// NewToolManager builds the registry holding the weather and datetime tools.
func NewToolManager(g *Generator) (*mcp.ToolManager, error) {
	return mcp.NewToolManager(Tools(g)...)
}
