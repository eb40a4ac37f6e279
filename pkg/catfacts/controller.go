// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package catfacts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/catfact-mailer/pkg/apiresponses"
	"github.com/telekom/catfact-mailer/pkg/audit"
	"github.com/telekom/catfact-mailer/pkg/dispatch"
	"github.com/telekom/catfact-mailer/pkg/metrics"
	"github.com/telekom/catfact-mailer/pkg/scheduler"
	"github.com/telekom/catfact-mailer/pkg/store"
	"github.com/telekom/catfact-mailer/pkg/system"
)

// MaxFactLength is the longest fact text accepted, in characters, after
// surrounding whitespace is trimmed.
const MaxFactLength = 1000

// Store is the part of the store used by the handlers.
type Store interface {
	RandomFact(ctx context.Context) (store.Fact, error)
	CreateFact(ctx context.Context, text string) (store.Fact, error)
	CountFacts(ctx context.Context) (int64, error)
	CreateSubscriber(ctx context.Context, email string) (store.Subscriber, error)
	CountSubscribers(ctx context.Context) (int64, error)
}

// SchedulerStatus reports the state of the daily scheduler for /stats.
type SchedulerStatus interface {
	State() scheduler.State
	Next() time.Time
	LastReport() *dispatch.CycleReport
}

type Controller struct {
	store     Store
	recorder  *audit.Recorder
	scheduler SchedulerStatus
	writeMW   []gin.HandlerFunc
	log       *zap.SugaredLogger
}

// NewController builds the controller. recorder and status may be nil;
// writeMiddleware is applied to the POST routes only.
func NewController(s Store, recorder *audit.Recorder, status SchedulerStatus, log *zap.SugaredLogger, writeMiddleware ...gin.HandlerFunc) *Controller {
	return &Controller{
		store:     s,
		recorder:  recorder,
		scheduler: status,
		writeMW:   writeMiddleware,
		log:       log.Named("catfacts"),
	}
}

func (c *Controller) BasePath() string {
	return "/"
}

func (c *Controller) Handlers() []gin.HandlerFunc {
	return nil
}

func (c *Controller) Register(rg *gin.RouterGroup) error {
	rg.GET("catfact", c.handleGetFact)
	rg.POST("catfact/create", c.withWriteLimit(c.handleCreateFact)...)
	rg.POST("subscribe", c.withWriteLimit(c.handleSubscribe)...)
	rg.GET("stats", c.handleStats)
	return nil
}

func (c *Controller) withWriteLimit(h gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(c.writeMW)+1)
	chain = append(chain, c.writeMW...)
	return append(chain, h)
}

type FactResponse struct {
	Fact string `json:"fact"`
}

func (c *Controller) handleGetFact(ctx *gin.Context) {
	log := system.GetReqLogger(ctx, c.log)

	fact, err := c.store.RandomFact(ctx.Request.Context())
	if errors.Is(err, store.ErrNoFacts) {
		apiresponses.RespondNotFoundSimple(ctx, err.Error())
		return
	}
	if err != nil {
		apiresponses.RespondStoreError(ctx, "read cat fact", err, log)
		return
	}
	apiresponses.RespondOK(ctx, FactResponse{Fact: fact.Text})
}

type CreateFactRequest struct {
	Fact string `json:"fact" binding:"required"`
}

func (c *Controller) handleCreateFact(ctx *gin.Context) {
	log := system.GetReqLogger(ctx, c.log)

	var req CreateFactRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBindError(ctx, err)
		return
	}
	text := strings.TrimSpace(req.Fact)
	if text == "" {
		apiresponses.RespondBadRequestWithDetails(ctx, "invalid request", "fact must not be blank")
		return
	}
	if utf8.RuneCountInString(text) > MaxFactLength {
		apiresponses.RespondBadRequestWithDetails(ctx, "invalid request", fmt.Sprintf("fact must be at most %d characters", MaxFactLength))
		return
	}

	fact, err := c.store.CreateFact(ctx.Request.Context(), text)
	if err != nil {
		apiresponses.RespondStoreError(ctx, "create cat fact", err, log)
		return
	}

	metrics.FactsCreated.Inc()
	c.recorder.FactCreated(fact.ID, ctx.ClientIP())
	log.Infow("Cat fact created", "factID", fact.ID)
	apiresponses.RespondCreated(ctx, fact)
}

type SubscribeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type SubscribeResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *Controller) handleSubscribe(ctx *gin.Context) {
	log := system.GetReqLogger(ctx, c.log)

	var req SubscribeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBindError(ctx, err)
		return
	}
	email := strings.TrimSpace(req.Email)

	sub, err := c.store.CreateSubscriber(ctx.Request.Context(), email)
	if errors.Is(err, store.ErrDuplicateSubscriber) {
		apiresponses.RespondConflict(ctx, err.Error())
		return
	}
	if err != nil {
		apiresponses.RespondStoreError(ctx, "create subscriber", err, log)
		return
	}

	metrics.SubscribersCreated.Inc()
	c.recorder.SubscriberRegistered(sub.ID, sub.Email, ctx.ClientIP())
	log.Infow("Subscriber registered", "subscriberID", sub.ID)
	apiresponses.RespondCreated(ctx, SubscribeResponse{ID: sub.ID, Email: sub.Email, CreatedAt: sub.CreatedAt})
}

type StatsResponse struct {
	Facts       int64           `json:"facts"`
	Subscribers int64           `json:"subscribers"`
	Scheduler   *SchedulerStats `json:"scheduler,omitempty"`
}

type SchedulerStats struct {
	State       scheduler.State       `json:"state"`
	NextTrigger *time.Time            `json:"nextTrigger,omitempty"`
	LastReport  *dispatch.CycleReport `json:"lastReport,omitempty"`
}

func (c *Controller) handleStats(ctx *gin.Context) {
	log := system.GetReqLogger(ctx, c.log)
	reqCtx := ctx.Request.Context()

	facts, err := c.store.CountFacts(reqCtx)
	if err != nil {
		apiresponses.RespondStoreError(ctx, "count cat facts", err, log)
		return
	}
	subscribers, err := c.store.CountSubscribers(reqCtx)
	if err != nil {
		apiresponses.RespondStoreError(ctx, "count subscribers", err, log)
		return
	}

	resp := StatsResponse{Facts: facts, Subscribers: subscribers}
	if c.scheduler != nil {
		st := &SchedulerStats{State: c.scheduler.State(), LastReport: c.scheduler.LastReport()}
		if next := c.scheduler.Next(); !next.IsZero() {
			st.NextTrigger = &next
		}
		resp.Scheduler = st
	}
	apiresponses.RespondOK(ctx, resp)
}
