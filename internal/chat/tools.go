package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/michaeltmk/portfolio/internal/ai"
	"github.com/michaeltmk/portfolio/internal/portfolio"
)

// Tools builds the assistant's tool set from the portfolio configuration.
// Every tool except getWeather answers from static config; getWeather calls
// the Open-Meteo API through client.
func Tools(cfg *portfolio.Config, client *http.Client) []ai.Tool {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return []ai.Tool{
		{
			Name:        "getPresentation",
			Description: "Gives a summary presentation of who I am. Use this when the user asks me to introduce myself or who I am.",
			Execute: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return renderPresentation(cfg), nil
			},
		},
		{
			Name:        "getProjects",
			Description: "Shows the projects I have worked on. Use this when the user asks about my projects or what I have built.",
			Execute: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return renderProjects(cfg), nil
			},
		},
		{
			Name:        "getResume",
			Description: "Shows my resume and where to download it. Use this when the user asks for my resume or CV.",
			Execute: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return renderResume(cfg), nil
			},
		},
		{
			Name:        "getContact",
			Description: "Shows my contact information. Use this when the user asks how to reach me.",
			Execute: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return renderContact(cfg), nil
			},
		},
		{
			Name:        "getSkills",
			Description: "Lists my technical and soft skills. Use this when the user asks what I can do or what technologies I know.",
			Execute: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return renderSkills(cfg), nil
			},
		},
		{
			Name:        "getSports",
			Description: "Tells about the sports I practice. Use this when the user asks about sports or physical activities.",
			Execute: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return renderSports(cfg), nil
			},
		},
		{
			Name:        "getCrazy",
			Description: "Tells the craziest thing I have ever done. Use this when the user asks for a crazy story about me.",
			Execute: func(ctx context.Context, _ json.RawMessage) (string, error) {
				if strings.TrimSpace(cfg.AIPersonality.CrazyStory) == "" {
					return "I'm keeping that story for an in-person chat. Ask me about my projects instead!", nil
				}
				return cfg.AIPersonality.CrazyStory, nil
			},
		},
		{
			Name:        "getOpportunities",
			Description: "Gives a summary of what kind of opportunities I'm looking for, plus my contact info and how to reach me. Use this tool when the user asks about my opportunity search or how to contact me for opportunities.",
			Execute: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return renderOpportunities(cfg), nil
			},
		},
		{
			Name:        "getWeather",
			Description: "Gets the current weather for a city. Use this when the user asks about the weather somewhere.",
			Params: []ai.ToolParam{
				{Name: "location", Type: "string", Description: "City name to get the weather for", Required: true},
			},
			Execute: func(ctx context.Context, args json.RawMessage) (string, error) {
				return getWeather(ctx, client, args)
			},
		},
	}
}

func renderPresentation(cfg *portfolio.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hey! I'm **%s**", cfg.Personal.Name)
	if cfg.Personal.Nickname != "" {
		fmt.Fprintf(&b, " (most people call me %s)", cfg.Personal.Nickname)
	}
	fmt.Fprintf(&b, ", a %s based in %s.\n\n%s\n",
		cfg.Personal.Title, cfg.Personal.Location, cfg.Personal.Description)
	if len(cfg.Professional.Experience) > 0 {
		latest := cfg.Professional.Experience[0]
		fmt.Fprintf(&b, "\nMost recently I've been a %s at %s.\n", latest.Position, latest.Company)
	}
	return b.String()
}

func renderProjects(cfg *portfolio.Config) string {
	if len(cfg.Projects) == 0 {
		return "I don't have projects listed right now, but ask me what I'm working on!"
	}
	var b strings.Builder
	b.WriteString("Here are some things I've built 👇\n")
	for _, p := range cfg.Projects {
		fmt.Fprintf(&b, "\n### %s\n%s\n", p.Title, p.Description)
		if len(p.TechStack) > 0 {
			fmt.Fprintf(&b, "- 🛠️ **Stack**: %s\n", strings.Join(p.TechStack, ", "))
		}
		if p.DemoURL != "" {
			fmt.Fprintf(&b, "- 🔗 **Demo**: %s\n", p.DemoURL)
		}
		if p.RepoURL != "" {
			fmt.Fprintf(&b, "- 📦 **Code**: %s\n", p.RepoURL)
		}
	}
	return b.String()
}

func renderResume(cfg *portfolio.Config) string {
	r := cfg.Resume
	var b strings.Builder
	fmt.Fprintf(&b, "📄 **%s**\n\n%s\n", r.Title, r.Description)
	if r.FileType != "" || r.FileSize != "" {
		fmt.Fprintf(&b, "- Format: %s (%s)\n", r.FileType, r.FileSize)
	}
	if r.LastUpdated != "" {
		fmt.Fprintf(&b, "- Last updated: %s\n", r.LastUpdated)
	}
	if r.DownloadURL != "" {
		fmt.Fprintf(&b, "- Download: %s\n", r.DownloadURL)
	}
	return b.String()
}

func renderContact(cfg *portfolio.Config) string {
	var b strings.Builder
	b.WriteString("📬 Here's how to reach me:\n")
	if cfg.Contact.Email != "" {
		fmt.Fprintf(&b, "- **Email**: %s\n", cfg.Contact.Email)
	}
	if cfg.Contact.Phone != "" {
		fmt.Fprintf(&b, "- **Phone**: %s\n", cfg.Contact.Phone)
	}
	for _, platform := range cfg.SocialPlatforms() {
		link := cfg.Contact.Social[platform]
		fmt.Fprintf(&b, "- **%s**: [%s](%s)\n", capitalizeFirst(platform), link.Username, link.URL)
	}
	return b.String()
}

func renderSkills(cfg *portfolio.Config) string {
	if len(cfg.Skills) == 0 {
		return "Ask me about a specific technology and I'll tell you if I've used it!"
	}
	var b strings.Builder
	b.WriteString("Here's my toolbox 🧰\n")
	for _, cat := range cfg.SkillCategories() {
		fmt.Fprintf(&b, "\n**%s**: %s\n", capitalizeFirst(cat), strings.Join(cfg.Skills[cat], ", "))
	}
	return b.String()
}

func renderSports(cfg *portfolio.Config) string {
	var b strings.Builder
	if len(cfg.Sports.Favorites) > 0 {
		fmt.Fprintf(&b, "🏃 I'm into %s.\n", strings.Join(cfg.Sports.Favorites, ", "))
	}
	if cfg.Sports.Story != "" {
		fmt.Fprintf(&b, "\n%s\n", cfg.Sports.Story)
	}
	if b.Len() == 0 {
		return "I spend more time at a keyboard than on a field, honestly. What about you?"
	}
	return b.String()
}

func renderOpportunities(cfg *portfolio.Config) string {
	o := cfg.Opportunities
	var b strings.Builder
	b.WriteString("Here's what I'm looking for 👇\n\n")
	fmt.Fprintf(&b, "- 📅 **Availability**: %s\n", o.Availability)
	location := o.PreferredLocation
	if o.RemoteWork {
		location += " or anywhere remote"
	}
	fmt.Fprintf(&b, "- 🌍 **Location**: Preferably **%s**\n", location)
	fmt.Fprintf(&b, "- 🧑‍💻 **Focus**: %s\n", strings.Join(o.FocusAreas, ", "))
	fmt.Fprintf(&b, "- 🛠️ **Stack**: %s\n", strings.Join(o.TechStack, ", "))
	fmt.Fprintf(&b, "- ✅ **What I bring**: %s\n", o.WhatIBring)
	fmt.Fprintf(&b, "- 🔥 %s\n", o.Motivation)
	b.WriteString("\n📬 **Contact me** via:\n")
	if cfg.Contact.Email != "" {
		fmt.Fprintf(&b, "- Email: %s\n", cfg.Contact.Email)
	}
	for _, platform := range []string{"linkedin", "github"} {
		if link, ok := cfg.Contact.Social[platform]; ok {
			fmt.Fprintf(&b, "- %s: [%s](%s)\n", capitalizeFirst(platform), link.URL, link.URL)
		}
	}
	if o.CallToAction != "" {
		fmt.Fprintf(&b, "\n%s\n", o.CallToAction)
	}
	return b.String()
}

var (
	openMeteoForecastURL = "https://api.open-meteo.com/v1/forecast"
	openMeteoGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
)

// weatherCodes maps WMO weather interpretation codes to descriptions.
var weatherCodes = map[int]string{
	0: "clear sky", 1: "mainly clear", 2: "partly cloudy", 3: "overcast",
	45: "fog", 48: "depositing rime fog",
	51: "light drizzle", 53: "moderate drizzle", 55: "dense drizzle",
	61: "slight rain", 63: "moderate rain", 65: "heavy rain",
	71: "slight snow", 73: "moderate snow", 75: "heavy snow",
	80: "rain showers", 81: "moderate rain showers", 82: "violent rain showers",
	95: "thunderstorm", 96: "thunderstorm with hail", 99: "thunderstorm with heavy hail",
}

type weatherArgs struct {
	Location string `json:"location"`
}

func getWeather(ctx context.Context, client *http.Client, raw json.RawMessage) (string, error) {
	var args weatherArgs
	if err := json.Unmarshal(raw, &args); err != nil || strings.TrimSpace(args.Location) == "" {
		return "", fmt.Errorf("chat: getWeather needs a location")
	}

	lat, lon, name, err := geocode(ctx, client, args.Location)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s?latitude=%f&longitude=%f&current=temperature_2m,weather_code,wind_speed_10m",
		openMeteoForecastURL, lat, lon)
	var forecast struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			WeatherCode int     `json:"weather_code"`
			WindSpeed   float64 `json:"wind_speed_10m"`
		} `json:"current"`
	}
	if err := getJSON(ctx, client, u, &forecast); err != nil {
		return "", fmt.Errorf("chat: fetch forecast: %w", err)
	}

	description := weatherCodes[forecast.Current.WeatherCode]
	if description == "" {
		description = "unknown conditions"
	}
	return fmt.Sprintf("Current weather in %s: %s, %.1f°C, wind %.1f km/h.",
		name, description, forecast.Current.Temperature, forecast.Current.WindSpeed), nil
}

func geocode(ctx context.Context, client *http.Client, location string) (lat, lon float64, name string, err error) {
	u := openMeteoGeocodeURL + "?count=1&name=" + url.QueryEscape(location)
	var result struct {
		Results []struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Country   string  `json:"country"`
		} `json:"results"`
	}
	if err := getJSON(ctx, client, u, &result); err != nil {
		return 0, 0, "", fmt.Errorf("chat: geocode %q: %w", location, err)
	}
	if len(result.Results) == 0 {
		return 0, 0, "", fmt.Errorf("chat: no such place %q", location)
	}
	r := result.Results[0]
	display := r.Name
	if r.Country != "" {
		display += ", " + r.Country
	}
	return r.Latitude, r.Longitude, display, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
