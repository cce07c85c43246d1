package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/service"
)

func (s *Server) fail(c *gin.Context, status int, message string, err error) {
	resp := gin.H{
		"success": false,
		"message": message,
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(status, resp)
}

func asIntQuery(c *gin.Context, key string) (int, error) {
	value := c.Query(key)
	if value == "" {
		return 0, errors.New("missing")
	}
	return strconv.Atoi(value)
}

// handleCronTrigger runs one full cycle. This is the endpoint an external
// cron hits on its cadence.
func (s *Server) handleCronTrigger(c *gin.Context) {
	report, err := s.Cycle.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrCycleRunning) {
			c.JSON(http.StatusOK, gin.H{
				"success": false,
				"message": "a cycle is already running",
			})
			return
		}
		s.fail(c, http.StatusInternalServerError, "cycle failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

// handleCronAction runs a selected sub-step of the cycle.
func (s *Server) handleCronAction(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid JSON payload", err)
		return
	}

	ctx := c.Request.Context()
	action := asString(raw["action"])
	switch action {
	case "", "all":
		s.handleCronTrigger(c)

	case "pipelines":
		limit := asInt(raw["limit"])
		if limit <= 0 {
			limit = s.Config.Pipeline.BatchSize
		}
		result, err := s.Pipeline.ProcessPending(ctx, limit)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, "pipeline pass failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "pipelines": result})

	case "posts":
		posts, notifications, err := s.Cycle.PostDue(ctx)
		if err != nil {
			if errors.Is(err, service.ErrCycleRunning) {
				c.JSON(http.StatusOK, gin.H{"success": false, "message": "a cycle is already running"})
				return
			}
			s.fail(c, http.StatusInternalServerError, "posting pass failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "posts": posts, "notifications": notifications})

	case "stats":
		stats, err := s.Stats.Snapshot(ctx)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, "failed to collect stats", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})

	default:
		s.fail(c, http.StatusBadRequest, "unknown action: "+action, nil)
	}
}

// handlePipelineAction dispatches the content pipeline operations.
func (s *Server) handlePipelineAction(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid JSON payload", err)
		return
	}

	ctx := c.Request.Context()
	action := asString(raw["action"])
	switch action {
	case "run":
		jobID := asString(raw["jobId"])
		if jobID == "" {
			jobID = asString(raw["job_id"])
		}
		if jobID == "" {
			s.fail(c, http.StatusBadRequest, "job id is required", nil)
			return
		}
		opts := service.Options{
			GenerateHooks: asBool(raw["generateHooks"], true),
			GenerateVideo: asBool(raw["generateVideo"], true),
			AutoSchedule:  asBool(raw["autoSchedule"], true),
		}
		result := s.Pipeline.ProcessJob(ctx, jobID, opts)
		status := http.StatusOK
		if !result.Success {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"success": result.Success, "message": result.Message})

	case "create-from-product":
		job, err := jobFromPayload(normalizePayload(raw))
		if err != nil {
			s.fail(c, http.StatusBadRequest, "invalid payload", err)
			return
		}
		runPipeline := asBool(raw["runPipeline"], false)
		job, result, err := s.Pipeline.CreateFromProduct(ctx, job, runPipeline)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, "failed to create job", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "job": job, "pipeline": result})

	case "process-pending":
		limit := asInt(raw["limit"])
		if limit <= 0 {
			limit = s.Config.Pipeline.BatchSize
		}
		result, err := s.Pipeline.ProcessPending(ctx, limit)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, "pipeline pass failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "pipelines": result})

	case "schedule-all":
		scheduled, err := s.Pipeline.ScheduleAll(ctx)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, "bulk scheduling failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "scheduled": scheduled})

	case "import-all-products":
		report, err := s.Pipeline.ImportAllProducts(ctx)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, "catalog import failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "report": report})

	default:
		s.fail(c, http.StatusBadRequest, "unknown action: "+action, nil)
	}
}

// handlePipelineQuery serves read-only pipeline introspection.
func (s *Server) handlePipelineQuery(c *gin.Context) {
	ctx := c.Request.Context()

	switch action := c.Query("action"); action {
	case "next-slot":
		var accountID *string
		if id := c.Query("account_id"); id != "" {
			accountID = &id
		}
		slot, err := s.Quota.PeekPostingSlot(ctx, accountID)
		if err != nil {
			if errors.Is(err, service.ErrNoActiveAccount) {
				s.fail(c, http.StatusConflict, "no active account available", err)
				return
			}
			s.fail(c, http.StatusInternalServerError, "failed to compute slot", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "slot": slot.Format(time.RFC3339)})

	case "", "queue":
		stats, err := s.Stats.Snapshot(ctx)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, "failed to collect stats", err)
			return
		}
		due, err := s.Store.Job().DueJobs(ctx, time.Now())
		if err != nil {
			s.Logger.Error("Failed to query due jobs", zap.Error(err))
			due = nil
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats, "due": due})

	default:
		s.fail(c, http.StatusBadRequest, "unknown action: "+action, nil)
	}
}
