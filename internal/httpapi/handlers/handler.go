package handlers

import (
	"go.uber.org/zap"

	"github.com/vinkalabs/membot/internal/assembler"
	"github.com/vinkalabs/membot/internal/config"
	"github.com/vinkalabs/membot/internal/jobs"
	"github.com/vinkalabs/membot/internal/quota"
	"github.com/vinkalabs/membot/internal/store/rabbitmq"
	"github.com/vinkalabs/membot/internal/tenant"
)

type Handler struct {
	Cfg       config.Config
	Assembler *assembler.Assembler
	Tenants   *tenant.Registry
	Enforcer  *quota.Enforcer
	Jobs      *jobs.Repo
	Publisher *rabbitmq.Publisher
	Logger    *zap.Logger
}

func NewHandler(
	cfg config.Config,
	asm *assembler.Assembler,
	tenants *tenant.Registry,
	enforcer *quota.Enforcer,
	jobRepo *jobs.Repo,
	publisher *rabbitmq.Publisher,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Cfg:       cfg,
		Assembler: asm,
		Tenants:   tenants,
		Enforcer:  enforcer,
		Jobs:      jobRepo,
		Publisher: publisher,
		Logger:    logger,
	}
}
