package serv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/dosco/docfind/conf"
	"github.com/dosco/docfind/core"
	"github.com/dosco/docfind/memdriver"
	"github.com/dosco/docfind/mongodriver"
	"github.com/dosco/docfind/serv/internal/util"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// initLogLevel initializes the log level
func (s *Service) initLogLevel() {
	s.logLevel = zap.NewAtomicLevelAt(util.ParseLevel(s.conf.LogLevel))
}

// initConfig initializes the configuration
func (s *Service) initConfig() error {
	c := s.conf

	if c.AppName == "" {
		c.AppName = "docfind"
	}

	hp := strings.SplitN(c.HostPort, ":", 2)

	if len(hp) == 2 {
		if c.Host != "" {
			hp[0] = c.Host
		}

		if c.Port != "" {
			hp[1] = c.Port
		}

		c.hostPort = fmt.Sprintf("%s:%s", hp[0], hp[1])
	}

	if c.hostPort == "" {
		c.hostPort = defaultHP
	}

	if c.DB.PingTimeout <= 0 {
		c.DB.PingTimeout = defaultPingTimeout
	}

	if c.DB.ConnectRetries == 0 {
		c.DB.ConnectRetries = defaultConnectRetries
	}

	if c.Filters.Path == "" {
		c.Filters.Path = conf.DefaultPath
	}
	return nil
}

// initFS roots the filesystem at the config path
func (s *Service) initFS() error {
	if s.fs != nil {
		return nil
	}

	basePath, err := s.basePath()
	if err != nil {
		return err
	}

	s.osPath = basePath
	s.fs = afero.NewBasePathFs(afero.NewOsFs(), basePath)
	return nil
}

// basePath returns the base path
func (s *Service) basePath() (string, error) {
	if s.conf.ConfigPath == "" {
		if cp, err := os.Getwd(); err == nil {
			return filepath.Join(cp, "config"), nil
		} else {
			return "", err
		}
	}
	return filepath.Abs(s.conf.ConfigPath)
}

// initStore connects to the configured database
func (s *Service) initStore() error {
	if s.store != nil {
		return nil
	}

	switch db := s.conf.DB; db.Type {
	case "mongodb", "mongo":
		var opts []mongodriver.Option
		if db.CoerceObjectIDs {
			opts = append(opts, mongodriver.WithObjectIDCoercion())
		}

		var ms *mongodriver.Store

		err := retry.Do(func() (err error) {
			ctx, cancel := context.WithTimeout(context.Background(), db.PingTimeout)
			defer cancel()
			ms, err = mongodriver.Connect(ctx, db.ConnString, db.DBName, opts...)
			return
		},
			retry.Attempts(db.ConnectRetries),
			retry.Delay(time.Second),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				s.log.Warnf("database connection attempt %d failed: %s", n+1, err)
			}))
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		s.store = ms
		s.closeStore = ms.Close
		s.log.Infof("connected to mongodb database '%s'", db.DBName)

	case "", "memory":
		ms := memdriver.New()
		if db.SeedFile != "" {
			data, err := readSeed(s.fs, db.SeedFile)
			if err != nil {
				return fmt.Errorf("seed file: %w", err)
			}
			ms.Load(data)
			s.log.Infof("loaded %d collections from %s", len(data), db.SeedFile)
		}
		s.store = ms

	default:
		return fmt.Errorf("database: unsupported type '%s'", db.Type)
	}
	return nil
}

// readSeed reads a {collection: [documents]} file
func readSeed(fs afero.Fs, name string) (map[string][]map[string]any, error) {
	b, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}

	var data map[string][]map[string]any

	if filepath.Ext(name) == ".json" {
		err = json.Unmarshal(b, &data)
	} else {
		err = yaml.Unmarshal(b, &data)
	}
	return data, err
}

// initEngine creates the filter engine over the store
func (s *Service) initEngine() (err error) {
	s.df, err = core.NewDocFind(&s.conf.Core, s.store, core.OptionSetLogger(s.zlog))
	return
}

// initFilters opens the saved filter list, read-only in production
func (s *Service) initFilters() (err error) {
	s.filters, err = conf.New(s.zlog, s.fs, s.conf.Filters.Path, s.conf.Production)
	return
}
