package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestBitcoinPriceTool(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/api/v3/simple/price" || r.URL.Query().Get("ids") != "bitcoin" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"bitcoin":{"usd":65000}}`)
	}))
	defer srv.Close()

	tool := NewBitcoinPriceTool(srv.URL+"/", srv.Client(), time.Minute)

	for i := 0; i < 3; i++ {
		got, err := tool.Execute(context.Background(), nil)
		if err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		if got != "$65000" {
			t.Errorf("Expected $65000, got %q", got)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("Expected cached lookups to hit the API once, got %d", hits.Load())
	}
}

func TestBitcoinPriceTool_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "oops", "status 500"},
		{"missing price", http.StatusOK, `{"ethereum":{"usd":1}}`, "missing"},
		{"bad json", http.StatusOK, `{`, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewBitcoinPriceTool(srv.URL, srv.Client(), 0).Execute(context.Background(), nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func newWeatherServer(t *testing.T, places string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/geo/1.0/direct":
			fmt.Fprint(w, places)
		case "/data/2.5/weather":
			if r.URL.Query().Get("units") != "metric" {
				t.Errorf("Expected metric units")
			}
			fmt.Fprint(w, `{"name":"London","weather":[{"description":"light rain"}],
				"main":{"temp":12.34,"feels_like":10.5,"humidity":81},
				"wind":{"speed":4.1},"sys":{"country":"GB"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestWeatherTool(t *testing.T) {
	srv := newWeatherServer(t, `[{"name":"London","lat":51.5,"lon":-0.12,"country":"GB"}]`)
	defer srv.Close()
	tool := NewWeatherTool(srv.URL, "key", srv.Client())

	want := "Current weather in London, GB: 12.3°C (feels like 10.5°C), light rain. Humidity: 81%, Wind speed: 4.1 m/s."
	for _, param := range []string{"London", `location="London"`, ` 'London' `} {
		t.Run(param, func(t *testing.T) {
			got, err := tool.Execute(context.Background(), []string{param})
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if got != want {
				t.Errorf("Expected %q, got %q", want, got)
			}
		})
	}
}

func TestWeatherTool_Validation(t *testing.T) {
	srv := newWeatherServer(t, `[]`)
	defer srv.Close()

	tests := []struct {
		name   string
		apiKey string
		params []string
		want   string
		errs   bool
	}{
		{"no params", "key", nil, "Error: Location parameter is missing", false},
		{"blank param", "key", []string{`""`}, "Error: Location parameter is missing", false},
		{"unknown place", "key", []string{"Atlantis"}, "Error: Location 'Atlantis' not found", false},
		{"no api key", "", []string{"London"}, "", true},
		{"bad api key", "wrong", []string{"London"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewWeatherTool(srv.URL, tt.apiKey, srv.Client()).Execute(context.Background(), tt.params)
			if (err != nil) != tt.errs {
				t.Fatalf("Unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestScrapeTool(t *testing.T) {
	long := strings.Repeat("word ", 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			fmt.Fprintf(w, `<html><head><title> Example   Domain </title>
				<meta name="Description" content="An example page">
				<style>body{color:red}</style></head>
				<body><h1>Hello</h1><script>var x = 1;</script><p>World</p></body></html>`)
		case "/long":
			fmt.Fprintf(w, `<html><body><p>%s</p></body></html>`, long)
		case "/bare":
			fmt.Fprint(w, `plain`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	tool := NewScrapeTool(srv.Client())

	tests := []struct {
		name   string
		params []string
		check  func(string) bool
	}{
		{"summary", []string{srv.URL + "/page"}, func(s string) bool {
			return s == "Title: Example Domain\nDescription: An example page\nBody preview: Hello World"
		}},
		{"long body truncated", []string{srv.URL + "/long"}, func(s string) bool {
			preview := strings.TrimPrefix(s, "Title: N/A\nDescription: N/A\nBody preview: ")
			return strings.HasSuffix(preview, "...") && len(preview) == bodyPreviewLength+3
		}},
		{"no title", []string{srv.URL + "/bare"}, func(s string) bool {
			return s == "Title: N/A\nDescription: N/A\nBody preview: plain"
		}},
		{"missing url", nil, func(s string) bool { return s == "Error: URL parameter is missing" }},
		{"invalid scheme", []string{"ftp://example.com"}, func(s string) bool {
			return s == "Error: Invalid URL format: ftp://example.com"
		}},
		{"relative url", []string{"example.com/page"}, func(s string) bool {
			return strings.HasPrefix(s, "Error: Invalid URL format")
		}},
		{"fetch failure", []string{srv.URL + "/missing"}, func(s string) bool {
			return s == "Error fetching web page: status 404"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tool.Execute(context.Background(), tt.params)
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if !tt.check(got) {
				t.Errorf("Unexpected result %q", got)
			}
		})
	}
}
