package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/strataml/strata/config"
)

// runSettings runs a capture command through the shared flag set and
// returns the settings the real commands would see.
func runSettings(t *testing.T, args []string) *config.Settings {
	t.Helper()

	var settings *config.Settings
	app := &cli.App{
		Name: "strata",
		Commands: []*cli.Command{
			{
				Name:  "capture",
				Flags: commonFlags(),
				Action: func(c *cli.Context) error {
					settings = settingsFromFlags(c)
					return nil
				},
			},
		},
	}

	require.NoError(t, app.Run(append([]string{"strata", "capture"}, args...)))
	require.NotNil(t, settings)
	return settings
}

func TestSettingsFromFlagsDefaults(t *testing.T) {
	settings := runSettings(t, nil)

	assert.Equal(t, "./strata-db", settings.DBPath)
	assert.Equal(t, 10, settings.PromoteAfterTurns)
	assert.Equal(t, 20, settings.ArchivalAfterTurns)
	assert.Equal(t, 3, settings.MaxAttempts)
	assert.Equal(t, 2000, settings.MaxArchiveFiles)
	assert.EqualValues(t, 1<<20, settings.MaxArchiveFileSize)
	assert.Equal(t, 20, settings.RecentLimit)
	assert.Equal(t, 4, settings.PromotionWorkers)
	assert.Equal(t, 2*time.Minute, settings.PromoteTimeout)
}

func TestSettingsFromFlagsOverrides(t *testing.T) {
	settings := runSettings(t, []string{
		"--promote-after", "5",
		"--archival-after", "8",
		"--max-attempts", "7",
		"--max-archive-files", "50",
		"--max-archive-file-size", "2048",
	})

	assert.Equal(t, 5, settings.PromoteAfterTurns)
	assert.Equal(t, 8, settings.ArchivalAfterTurns)
	assert.Equal(t, 7, settings.MaxAttempts)
	assert.Equal(t, 50, settings.MaxArchiveFiles)
	assert.EqualValues(t, 2048, settings.MaxArchiveFileSize)
}

func TestSettingsFromEnvironment(t *testing.T) {
	t.Setenv("STRATA_DB", "/var/lib/strata")
	t.Setenv("STRATA_PROMOTE_AFTER", "6")
	t.Setenv("STRATA_MAX_ATTEMPTS", "9")
	t.Setenv("STRATA_MAX_ARCHIVE_FILE_SIZE", "4096")

	settings := runSettings(t, nil)

	assert.Equal(t, "/var/lib/strata", settings.DBPath)
	assert.Equal(t, 6, settings.PromoteAfterTurns)
	assert.Equal(t, 9, settings.MaxAttempts)
	assert.EqualValues(t, 4096, settings.MaxArchiveFileSize)
}

func TestSetupLoggerLevels(t *testing.T) {
	newApp := func() *cli.App {
		return &cli.App{
			Name: "strata",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Value: "info"},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
	}

	for _, level := range []string{"debug", "info", "warn", "error", "WARN"} {
		t.Run(level, func(t *testing.T) {
			require.NoError(t, newApp().Run([]string{"strata", "--log-level", level}))
		})
	}

	t.Run("invalid level", func(t *testing.T) {
		err := newApp().Run([]string{"strata", "--log-level", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
