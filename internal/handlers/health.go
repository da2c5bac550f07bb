package handlers

import (
	"context"
	"net/http"
	"time"
)

type healthResp struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var errs, warns []string

	if h.Postgres == nil || h.Postgres.Pool == nil {
		errs = append(errs, "postgres not initialized")
	} else if err := h.Postgres.Pool.Ping(ctx); err != nil {
		errs = append(errs, "postgres ping failed: "+err.Error())
	}

	if h.Mongo == nil || h.Mongo.Client == nil {
		errs = append(errs, "mongo not initialized")
	} else if err := h.Mongo.Client.Ping(ctx, nil); err != nil {
		errs = append(errs, "mongo ping failed: "+err.Error())
	}

	if h.S3 == nil || h.S3.Client == nil {
		errs = append(errs, "s3 not initialized")
	} else if ok, err := h.S3.Client.BucketExists(ctx, h.S3.Bucket); err != nil {
		errs = append(errs, "s3 bucket check failed: "+err.Error())
	} else if !ok {
		errs = append(errs, `s3 bucket "`+h.S3.Bucket+`" not found`)
	}

	// the stats cache is optional, so redis problems only warn
	if h.Redis == nil || h.Redis.Client == nil {
		warns = append(warns, "redis not configured")
	} else if err := h.Redis.Client.Ping(ctx).Err(); err != nil {
		warns = append(warns, "redis ping failed: "+err.Error())
	}

	resp := healthResp{OK: len(errs) == 0, Errors: errs, Warnings: warns}
	code := http.StatusOK
	if !resp.OK {
		code = http.StatusInternalServerError
	}
	h.JSON(w, code, resp)
}
