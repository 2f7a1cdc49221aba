package domain

import "testing"

func TestRoleForEmail(t *testing.T) {
	admins := []string{"Root@Example.com", " ops@example.com "}
	tests := []struct {
		name    string
		current UserRole
		email   string
		want    UserRole
	}{
		{name: "regular user", current: UserRoleUser, email: "dev@example.com", want: UserRoleUser},
		{name: "promoted case insensitive", current: UserRoleUser, email: "root@example.com", want: UserRoleAdmin},
		{name: "promoted trimmed", current: "", email: "ops@example.com", want: UserRoleAdmin},
		{name: "admin keeps role", current: UserRoleAdmin, email: "dev@example.com", want: UserRoleAdmin},
		{name: "empty email", current: UserRoleUser, email: "  ", want: UserRoleUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleForEmail(tt.current, tt.email, admins); got != tt.want {
				t.Fatalf("RoleForEmail(%v, %q) = %v, want %v", tt.current, tt.email, got, tt.want)
			}
		})
	}
}

func TestParseContentConfigAcceptsStringLimits(t *testing.T) {
	cfg := ParseContentConfig([]byte(`{"topics":["weekly","skills"],"keywords":"agent","aiLimit":"7","trendingLimit":3,"skillsType":"hot"}`))
	if cfg.AILimit != 7 || cfg.TrendingLimit != 3 {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if cfg.SkillsType != "hot" || len(cfg.Topics) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseContentConfigMalformed(t *testing.T) {
	cfg := ParseContentConfig([]byte(`{"topics":`))
	if len(cfg.Topics) != 0 || cfg.Keywords != "" {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestParseChannelType(t *testing.T) {
	if _, err := ParseChannelType("telegram"); err == nil {
		t.Fatal("expected error for unknown channel type")
	}
	ct, err := ParseChannelType(" WeCom ")
	if err != nil || ct != ChannelWeCom {
		t.Fatalf("ParseChannelType = %v, %v", ct, err)
	}
}
