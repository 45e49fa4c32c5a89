package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "ATT", cfg.Attendance.CodePrefix)
	assert.Equal(t, 5*time.Second, cfg.Attendance.LocationTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Attendance.ClockSkew)
	assert.Equal(t, time.Duration(0), cfg.Attendance.LateAfter)
	assert.Equal(t, 4*time.Hour, cfg.Attendance.MaxDuration)
	assert.InDelta(t, 100, cfg.Scheduler.DefaultRadiusMeters, 0.001)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, NotifyDriverConsole, cfg.Notifications.Driver)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ATTENDANCE_LATE_AFTER", "10m")
	t.Setenv("ALLOWED_ORIGINS", "https://lms.example.edu, https://admin.example.edu ,")
	t.Setenv("NOTIFY_DRIVER", "SendGrid")
	t.Setenv("SUMMARY_CACHE_TTL", "not-a-duration")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, 10*time.Minute, cfg.Attendance.LateAfter)
	assert.Equal(t, []string{"https://lms.example.edu", "https://admin.example.edu"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, NotifyDriverSendGrid, cfg.Notifications.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Summary.CacheTTL)
}
