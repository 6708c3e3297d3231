package weather

import (
	"github.com/shaharia-lab/weather-mcp/mcp"
)

const (
	PromptTimeInLocation    = "time_in_location"
	PromptDailyBriefing     = "daily_briefing"
	PromptWeatherComparison = "weather_comparison"
)

func userMessage(text string) mcp.PromptMessage {
	return mcp.PromptMessage{
		Role:    mcp.RoleUser,
		Content: mcp.PromptContent{Type: "text", Text: text},
	}
}

// Prompts returns the prompt templates, in advertised order.
func Prompts() []mcp.Prompt {
	return []mcp.Prompt{
		{
			Name:        PromptTimeInLocation,
			Description: "Get the current local time in a specific location",
			Arguments: []mcp.PromptArgument{
				{Name: "location", Description: "The city or place to get the local time for", Required: true},
			},
			Messages: []mcp.PromptMessage{
				userMessage("What time is it right now in {{location}}?\n\n" +
					"1. Call the " + ToolCurrentDatetime + " tool with timezone set to \"UTC\" to get the current UTC time.\n" +
					"2. Convert that UTC time to the local time in {{location}} using its standard UTC offset, " +
					"accounting for daylight saving time where it applies.\n" +
					"3. Reply with only the final local time in {{location}} in a friendly, human-readable form. " +
					"Do not show the raw UTC time, the ISO timestamp or the conversion steps."),
			},
		},
		{
			Name:        PromptDailyBriefing,
			Description: "Get a morning briefing with the time, current weather and a short forecast for a location",
			Arguments: []mcp.PromptArgument{
				{Name: "location", Description: "The city or place the briefing is for", Required: true},
			},
			Messages: []mcp.PromptMessage{
				userMessage("Prepare my daily briefing for {{location}}.\n\n" +
					"1. Call " + ToolCurrentDatetime + " to get the current date and time.\n" +
					"2. Call " + ToolCurrentWeather + " for {{location}}.\n" +
					"3. Call " + ToolWeatherForecast + " for {{location}} with days set to 3.\n\n" +
					"Then combine the results into a short, friendly morning briefing: today's date and time, " +
					"the current conditions, what the next three days look like, and any practical advice " +
					"such as bringing an umbrella or dressing warmly."),
			},
		},
		{
			Name:        PromptWeatherComparison,
			Description: "Compare the current weather in two locations",
			Arguments: []mcp.PromptArgument{
				{Name: "location1", Description: "The first city or place", Required: true},
				{Name: "location2", Description: "The second city or place", Required: true},
			},
			Messages: []mcp.PromptMessage{
				userMessage("Compare the current weather in {{location1}} and {{location2}}.\n\n" +
					"Call " + ToolCurrentWeather + " once for {{location1}} and once for {{location2}}, " +
					"then present a side-by-side comparison covering temperature, condition, humidity and wind speed. " +
					"Finish with a one-sentence summary of which place has the nicer weather right now."),
			},
		},
	}
}

// NewPromptManager builds the registry holding the weather prompts.
func NewPromptManager() (*mcp.PromptManager, error) {
	return mcp.NewPromptManager(Prompts()...)
}
