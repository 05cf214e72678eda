// Package source picks the job source each community syncs from.
package source

import (
	"log/slog"
	"net/http"
	"strings"

	"terrarium_jobs/internal/config"
	"terrarium_jobs/internal/domain"
	"terrarium_jobs/internal/service"
	"terrarium_jobs/internal/source/fixture"
	"terrarium_jobs/internal/source/recruitcrm"
)

// Factory builds a RecruitCRM client per community credential, or a
// fixture source when a fixture file is configured.
type Factory struct {
	cfg        config.RecruitCRMConfig
	pageSize   int
	httpClient *http.Client
	logger     *slog.Logger
}

func NewFactory(cfg config.RecruitCRMConfig, pageSize int, logger *slog.Logger) *Factory {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = recruitcrm.DefaultTimeout
	}
	return &Factory{
		cfg:        cfg,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (f *Factory) ForCommunity(community *domain.Community) (service.JobSource, error) {
	apiKey := strings.TrimSpace(community.RecruitCRM.APIKey)
	if apiKey == "" {
		apiKey = f.cfg.APIKey
	}

	if f.cfg.FixturePath != "" {
		src, err := fixture.LoadFile(f.cfg.FixturePath, apiKey)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	return recruitcrm.New(recruitcrm.Config{
		BaseURL:        f.cfg.BaseURL,
		APIKey:         apiKey,
		AuthScheme:     f.cfg.AuthScheme,
		PageSize:       f.pageSize,
		Timeout:        f.cfg.Timeout,
		MaxAttempts:    f.cfg.Retry.MaxAttempts,
		InitialBackoff: f.cfg.Retry.InitialBackoff,
		MaxBackoff:     f.cfg.Retry.MaxBackoff,
		HTTPClient:     f.httpClient,
	}, f.logger.With("community_id", community.ID)), nil
}
