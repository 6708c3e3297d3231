// Package weather produces deterministic fake weather and real clock readings
// and exposes them as MCP tools and prompts.
package weather

import (
	"hash/fnv"
	"math/rand"
	"strings"
	"time"
)

// Unit is the temperature unit of every reading.
const Unit = "Fahrenheit"

const (
	minForecastDays     = 1
	maxForecastDays     = 7
	defaultForecastDays = 3

	dateLayout      = "2006-01-02"
	isoLayout       = "2006-01-02T15:04:05.999999-07:00"
	formattedLayout = "2006-01-02 15:04:05"
)

// Conditions lists every condition a reading can report, in draw order.
var Conditions = []string{
	"sunny",
	"cloudy",
	"partly cloudy",
	"rainy",
	"foggy",
	"snowy",
	"thunderstorms",
	"clear",
}

type CurrentWeather struct {
	Location    string `json:"location"`
	Temperature int    `json:"temperature"`
	Condition   string `json:"condition"`
	Humidity    int    `json:"humidity"`
	WindSpeed   int    `json:"wind_speed"`
	Unit        string `json:"unit"`
}

type DailyForecast struct {
	Date            string `json:"date"`
	TemperatureHigh int    `json:"temperature_high"`
	TemperatureLow  int    `json:"temperature_low"`
	Condition       string `json:"condition"`
	Humidity        int    `json:"humidity"`
	WindSpeed       int    `json:"wind_speed"`
}

type Forecast struct {
	Location string          `json:"location"`
	Forecast []DailyForecast `json:"forecast"`
	Unit     string          `json:"unit"`
}

type Datetime struct {
	Datetime  string  `json:"datetime"`
	Formatted string  `json:"formatted"`
	Timezone  string  `json:"timezone"`
	Timestamp float64 `json:"timestamp"`
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// Generator derives readings from (location, date) so that the same pair always
// yields the same values within one process. It has no mutable state.
type Generator struct {
	now func() time.Time
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// reading is one day's raw draw before any seasonal adjustment.
type reading struct {
	condition   string
	temperature int
	humidity    int
	windSpeed   int
}

// CurrentWeather returns today's reading for location.
func (g *Generator) CurrentWeather(location string) CurrentWeather {
	r, _ := draw(location, g.now())
	return CurrentWeather{
		Location:    location,
		Temperature: r.temperature,
		Condition:   r.condition,
		Humidity:    r.humidity,
		WindSpeed:   r.windSpeed,
		Unit:        Unit,
	}
}

// Forecast returns one entry per day starting today. days is clamped to [1,7].
func (g *Generator) Forecast(location string, days int) Forecast {
	days = ClampDays(days)
	today := g.now()

	entries := make([]DailyForecast, 0, days)
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, i)
		entries = append(entries, forecastDay(location, date))
	}

	return Forecast{
		Location: location,
		Forecast: entries,
		Unit:     Unit,
	}
}

// ClampDays forces a forecast length into the supported range.
func ClampDays(days int) int {
	if days < minForecastDays {
		return minForecastDays
	}
	if days > maxForecastDays {
		return maxForecastDays
	}
	return days
}

func forecastDay(location string, date time.Time) DailyForecast {
	r, rng := draw(location, date)
	r = seasonal(r, date.Month(), rng)

	variation := randint(rng, 5, 15)
	return DailyForecast{
		Date:            date.Format(dateLayout),
		TemperatureHigh: r.temperature + variation/2,
		TemperatureLow:  r.temperature - variation/2,
		Condition:       r.condition,
		Humidity:        r.humidity,
		WindSpeed:       r.windSpeed,
	}
}

// draw seeds a generator for (location, date) and takes condition,
// temperature, humidity and wind in that order. The generator is returned so
// callers can continue the same sequence.
func draw(location string, date time.Time) (reading, *rand.Rand) {
	rng := rand.New(rand.NewSource(seed(location, date)))

	r := reading{}
	r.condition = Conditions[randint(rng, 0, len(Conditions)-1)]
	r.temperature = randint(rng, 15, 95)
	r.humidity = randint(rng, 30, 90)
	r.windSpeed = randint(rng, 5, 25)
	return r, rng
}

// seasonal lowers winter temperatures (with a one in three chance of snow)
// and raises summer ones.
func seasonal(r reading, month time.Month, rng *rand.Rand) reading {
	switch month {
	case time.December, time.January, time.February:
		r.temperature = max(r.temperature-25, 10)
		if randint(rng, 0, 2) == 0 {
			r.condition = "snowy"
		}
	case time.June, time.July, time.August:
		r.temperature = min(r.temperature+15, 100)
	}
	return r
}

func seed(location string, date time.Time) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(location))
	return int64(h.Sum64()) + int64(date.YearDay())
}

// randint returns an integer in [lo, hi].
func randint(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

// CurrentDatetime reads the clock in UTC when timezone is "utc" (any case)
// and in the local zone otherwise.
func (g *Generator) CurrentDatetime(timezone string) Datetime {
	now := g.now()
	name := "Local"
	if strings.EqualFold(strings.TrimSpace(timezone), "utc") {
		now = now.UTC()
		name = "UTC"
	} else {
		now = now.Local()
	}

	return Datetime{
		Datetime:  now.Format(isoLayout),
		Formatted: now.Format(formattedLayout),
		Timezone:  name,
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
	}
}
