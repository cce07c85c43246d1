package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/promoloop/reelpipe/internal/service"
	"github.com/promoloop/reelpipe/internal/store"
)

func (s *Server) handleListJobs(c *gin.Context) {
	filter := store.JobFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
	}
	if page, err := asIntQuery(c, "page"); err == nil {
		filter.Page = page
	}
	if perPage, err := asIntQuery(c, "per_page"); err == nil {
		filter.PerPage = perPage
	}
	if hasVideo := c.Query("has_video"); hasVideo != "" {
		v := hasVideo == "true" || hasVideo == "1"
		filter.HasVideo = &v
	}

	jobs, total, err := s.Store.Job().List(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to list jobs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobs":    jobs,
		"total":   total,
	})
}

// handleCreateJobs accepts either a single job object or an array of them.
// Jobs are upserted by product id so re-sending a sheet of products updates
// the existing queue instead of duplicating it.
func (s *Server) handleCreateJobs(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.fail(c, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	var raws []map[string]interface{}
	single := false
	if err := json.Unmarshal(body, &raws); err != nil {
		var raw map[string]interface{}
		if err := json.Unmarshal(body, &raw); err != nil {
			s.fail(c, http.StatusBadRequest, "invalid JSON payload", err)
			return
		}
		raws = append(raws, raw)
		single = true
	}

	type outcome struct {
		Success bool        `json:"success"`
		Created bool        `json:"created"`
		Job     interface{} `json:"job,omitempty"`
		Error   string      `json:"error,omitempty"`
	}

	results := make([]outcome, 0, len(raws))
	createdCount := 0
	failedCount := 0
	for _, raw := range raws {
		job, err := jobFromPayload(normalizePayload(raw))
		if err != nil {
			results = append(results, outcome{Success: false, Error: err.Error()})
			failedCount++
			continue
		}

		job, created, err := s.Store.Job().Upsert(c.Request.Context(), job)
		if err != nil {
			s.Logger.Error("Failed to upsert job", zap.Error(err))
			results = append(results, outcome{Success: false, Error: err.Error()})
			failedCount++
			continue
		}
		if created {
			createdCount++
		}
		results = append(results, outcome{Success: true, Created: created, Job: job})
	}

	if single {
		r := results[0]
		if !r.Success {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": r.Error})
			return
		}
		status := http.StatusOK
		if r.Created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"success": true, "created": r.Created, "job": r.Job})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": failedCount == 0,
		"created": createdCount,
		"failed":  failedCount,
		"results": results,
	})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.Store.Job().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			s.fail(c, http.StatusNotFound, "job not found", err)
			return
		}
		s.fail(c, http.StatusInternalServerError, "failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "job": job})
}

func (s *Server) handleUpdateJob(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid JSON payload", err)
		return
	}

	updates, err := updatesFromPayload(normalizePayload(raw))
	if err != nil {
		s.fail(c, http.StatusBadRequest, "invalid payload", err)
		return
	}
	if len(updates) == 0 {
		s.fail(c, http.StatusBadRequest, "no updatable fields in payload", nil)
		return
	}

	job, err := s.Store.Job().Update(c.Request.Context(), c.Param("id"), updates)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			s.fail(c, http.StatusNotFound, "job not found", err)
			return
		}
		s.fail(c, http.StatusInternalServerError, "failed to update job", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "job": job})
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	err := s.Store.Job().Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			s.fail(c, http.StatusNotFound, "job not found", err)
		case errors.Is(err, store.ErrJobProcessing):
			s.fail(c, http.StatusConflict, "job is being posted and cannot be deleted", err)
		default:
			s.fail(c, http.StatusInternalServerError, "failed to delete job", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleJobsDone is the completion callback for posts published outside the
// executor. The job is resolved by id, or by product id when the caller only
// knows the product. Repeating the callback is a no-op.
func (s *Server) handleJobsDone(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid JSON payload", err)
		return
	}
	p := normalizePayload(raw)

	ctx := c.Request.Context()
	jobID := asString(p["job_id"])
	if jobID == "" {
		productID := asString(p["product_id"])
		if productID == "" {
			s.fail(c, http.StatusBadRequest, "job id or product id is required", nil)
			return
		}
		job, err := s.Store.Job().LatestNonTerminalByProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				s.fail(c, http.StatusNotFound, "no open job for product", err)
				return
			}
			s.fail(c, http.StatusInternalServerError, "failed to resolve job", err)
			return
		}
		jobID = job.ID
	}

	job, err := s.Store.Job().MarkDone(ctx, jobID, asString(p["tiktok_post_id"]), time.Now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			s.fail(c, http.StatusNotFound, "job not found", err)
		case errors.Is(err, store.ErrMissingPostID):
			s.fail(c, http.StatusBadRequest, "post id is required", err)
		case errors.Is(err, store.ErrPostIDMismatch):
			s.fail(c, http.StatusConflict, "job already completed with a different post id", err)
		default:
			s.fail(c, http.StatusInternalServerError, "failed to complete job", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "job": job})
}

// handleJobsRetry re-queues failed jobs: a single id, an explicit list, or
// every retryable failure when neither is given.
func (s *Server) handleJobsRetry(c *gin.Context) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid JSON payload", err)
		return
	}

	ctx := c.Request.Context()
	runPipeline := asBool(raw["runPipeline"], false)

	if jobID := asString(raw["id"]); jobID != "" {
		job, err := s.Retry.Retry(ctx, jobID)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrRecordNotFound):
				s.fail(c, http.StatusNotFound, "job not found", err)
			case errors.Is(err, service.ErrNotRetryable):
				s.fail(c, http.StatusConflict, "job is not in a failed state", err)
			case errors.Is(err, service.ErrRetriesExhausted):
				s.fail(c, http.StatusConflict, "job has no retries left", err)
			default:
				s.fail(c, http.StatusInternalServerError, "failed to retry job", err)
			}
			return
		}
		var pipeline *service.Result
		if runPipeline {
			pipeline = s.Pipeline.ProcessJob(ctx, job.ID, service.AllStages())
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "job": job, "pipeline": pipeline})
		return
	}

	if ids := asStringSlice(raw["ids"]); len(ids) > 0 {
		report := &service.RetryReport{}
		for _, id := range ids {
			if _, err := s.Retry.Retry(ctx, id); err != nil {
				s.Logger.Warn("Skipping retry", zap.String("job_id", id), zap.Error(err))
				report.Skipped++
				continue
			}
			report.Retried++
			if runPipeline {
				report.Pipeline = append(report.Pipeline, s.Pipeline.ProcessJob(ctx, id, service.AllStages()))
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
		return
	}

	report, err := s.Retry.RetryAll(ctx, runPipeline)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to retry jobs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}
