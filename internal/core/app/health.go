package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Session    string            `json:"session"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}
	if s.app == nil || s.app.ds == nil {
		status.Status = "down"
		status.Components["dataset"] = "not loaded"
		return status
	}
	status.Session = s.app.session

	ds := s.app.ds
	if ds.Revision != "" {
		status.Components["dataset"] = fmt.Sprintf("ok (revision %s)", ds.Revision)
	} else {
		status.Components["dataset"] = "ok"
	}

	g := s.app.base
	if g.TotalRoots() == 0 {
		status.Status = "degraded"
		status.Components["graph"] = fmt.Sprintf("no roots (%d files, %d edges)", g.NodeCount(), g.EdgeCount())
	} else {
		status.Components["graph"] = fmt.Sprintf("ok (%d files, %d edges, %d roots)", g.NodeCount(), g.EdgeCount(), g.TotalRoots())
	}

	if s.app.oracle != nil {
		status.Components["oracle"] = "ok"
	} else if s.app.oracleErr != nil {
		status.Status = "degraded"
		status.Components["oracle"] = s.app.oracleErr.Error()
	} else {
		status.Components["oracle"] = "not opened"
	}
	return status
}
