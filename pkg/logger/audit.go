package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// AuditConfig configures the dedicated audit trail
type AuditConfig struct {
	File       string `mapstructure:"audit_file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`

	Writer io.Writer `mapstructure:"-"`
}

// NewAuditLogger returns a JSON logger for audit events. Audit files keep
// twice the retention of the application log.
func NewAuditLogger(cfg AuditConfig) (*logrus.Logger, error) {
	audit := logrus.New()
	audit.SetLevel(logrus.InfoLevel)
	audit.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})

	switch {
	case cfg.Writer != nil:
		audit.SetOutput(cfg.Writer)
	case cfg.File != "":
		w, err := rotatingWriter(cfg.File, cfg.MaxSize, cfg.MaxBackups*2, cfg.MaxAge*2, cfg.Compress)
		if err != nil {
			return nil, err
		}
		audit.SetOutput(w)
	default:
		audit.SetOutput(os.Stdout)
	}

	return audit, nil
}
