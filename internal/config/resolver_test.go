package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type mapStore struct {
	values map[string]string
	err    error
}

func (m *mapStore) Get(_ context.Context, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.values[key], nil
}

// rowStore distinguishes missing rows from stored empty values.
type rowStore struct {
	mapStore
}

func (r *rowStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	if r.err != nil {
		return "", false, r.err
	}
	v, ok := r.values[key]
	return v, ok, nil
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func newTestResolver(store SettingsReader, vars map[string]string) *Resolver {
	return NewResolver(store, slog.New(slog.NewTextHandler(io.Discard, nil))).WithEnv(env(vars))
}

func TestResolve_Priority(t *testing.T) {
	tests := []struct {
		name  string
		store SettingsReader
		env   map[string]string
		want  RouterConfig
	}{
		{
			name:  "defaults",
			store: &mapStore{},
			want:  RouterConfig{LocalEndpoint: DefaultLocalEndpoint, LocalModel: DefaultLocalModel},
		},
		{
			name:  "env over defaults",
			store: &mapStore{},
			env:   map[string]string{EnvLocalEndpoint: "http://gpu-box:11434/", EnvCloudAPIKey: "env-key"},
			want:  RouterConfig{LocalEndpoint: "http://gpu-box:11434", LocalModel: DefaultLocalModel, CloudAPIKey: "env-key"},
		},
		{
			name:  "store over env",
			store: &mapStore{values: map[string]string{KeyLocalModel: "phi3", KeyCloudAPIKey: "db-key"}},
			env:   map[string]string{EnvLocalModel: "mistral", EnvCloudAPIKey: "env-key"},
			want:  RouterConfig{LocalEndpoint: DefaultLocalEndpoint, LocalModel: "phi3", CloudAPIKey: "db-key"},
		},
		{
			name:  "placeholder in store and env is unset",
			store: &mapStore{values: map[string]string{KeyCloudAPIKey: "your-gemini-api-key-here"}},
			env:   map[string]string{EnvCloudAPIKey: "CHANGEME"},
			want:  RouterConfig{LocalEndpoint: DefaultLocalEndpoint, LocalModel: DefaultLocalModel},
		},
		{
			name:  "store error degrades to env",
			store: &mapStore{err: errors.New("connection refused")},
			env:   map[string]string{EnvLocalModel: "mistral"},
			want:  RouterConfig{LocalEndpoint: DefaultLocalEndpoint, LocalModel: "mistral"},
		},
		{
			name:  "nil store",
			store: nil,
			env:   map[string]string{EnvCloudAPIKey: "k"},
			want:  RouterConfig{LocalEndpoint: DefaultLocalEndpoint, LocalModel: DefaultLocalModel, CloudAPIKey: "k"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestResolver(tt.store, tt.env).Resolve(context.Background())
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolve_ReadsStoreEveryCall(t *testing.T) {
	store := &mapStore{values: map[string]string{}}
	r := newTestResolver(store, nil)

	if r.Resolve(context.Background()).HasCloudKey() {
		t.Fatal("expected no cloud key")
	}
	store.values[KeyCloudAPIKey] = "fresh"
	if got := r.Resolve(context.Background()).CloudAPIKey; got != "fresh" {
		t.Errorf("expected updated key, got %q", got)
	}
}

func TestPreferences(t *testing.T) {
	store := &mapStore{values: map[string]string{
		KeyPreferLocal: "0",
		KeyDailyLimit:  "90",
		KeyReminder60:  "false",
		KeyChildName:   "Maya",
	}}
	p := newTestResolver(store, nil).Preferences(context.Background())

	want := Preferences{
		PreferLocal:       false,
		DailyLimitMinutes: 90,
		Reminder30:        true,
		Reminder60:        false,
		QuietHoursStart:   "20:00",
		QuietHoursEnd:     "07:00",
		ChildName:         "Maya",
	}
	if p != want {
		t.Errorf("Preferences() = %+v, want %+v", p, want)
	}
}

func TestPreferences_QuietHours(t *testing.T) {
	tests := []struct {
		name      string
		store     SettingsReader
		wantStart string
		wantEnd   string
	}{
		{
			name:      "cleared by parent",
			store:     &rowStore{mapStore{values: map[string]string{KeyQuietHoursStart: "", KeyQuietHoursEnd: ""}}},
			wantStart: "",
			wantEnd:   "",
		},
		{
			name:      "custom window",
			store:     &rowStore{mapStore{values: map[string]string{KeyQuietHoursStart: " 21:30 ", KeyQuietHoursEnd: "06:45"}}},
			wantStart: "21:30",
			wantEnd:   "06:45",
		},
		{
			name:      "rows missing",
			store:     &rowStore{mapStore{values: map[string]string{}}},
			wantStart: "20:00",
			wantEnd:   "07:00",
		},
		{
			name:      "store error",
			store:     &rowStore{mapStore{err: errors.New("down")}},
			wantStart: "20:00",
			wantEnd:   "07:00",
		},
		{
			name:      "plain reader cannot tell empty from missing",
			store:     &mapStore{values: map[string]string{KeyQuietHoursStart: ""}},
			wantStart: "20:00",
			wantEnd:   "07:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestResolver(tt.store, nil).Preferences(context.Background())
			if p.QuietHoursStart != tt.wantStart || p.QuietHoursEnd != tt.wantEnd {
				t.Errorf("quiet hours = %q..%q, want %q..%q", p.QuietHoursStart, p.QuietHoursEnd, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestPreferences_StoreErrorUsesDefaults(t *testing.T) {
	p := newTestResolver(&mapStore{err: errors.New("down")}, nil).Preferences(context.Background())
	if !p.PreferLocal || p.DailyLimitMinutes != 45 || !p.Reminder30 || !p.Reminder60 {
		t.Errorf("unexpected preferences %+v", p)
	}
}

func TestParseHelpers(t *testing.T) {
	if parseBool("garbage", true) != true || parseBool("off", true) != false {
		t.Error("parseBool")
	}
	if parseInt("-5", 45) != 45 || parseInt("x", 45) != 45 || parseInt(" 30 ", 45) != 30 {
		t.Error("parseInt")
	}
}
