package api

import (
	"fmt"
	"time"

	"github.com/keagan/scenesplit/internal/scene"
	"github.com/keagan/scenesplit/internal/session"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	Batches int    `json:"batches"`
}

type CreateBatchResponse struct {
	ID     string `json:"id"`
	Videos int    `json:"videos"`
}

type BatchResponse struct {
	ID        string              `json:"id"`
	State     string              `json:"state"`
	Progress  float64             `json:"progress"`
	Status    string              `json:"status"`
	Scenes    int                 `json:"scenes"`
	Failures  int                 `json:"failures"`
	Videos    []scene.VideoReport `json:"videos,omitempty"`
	Error     string              `json:"error,omitempty"`
	CreatedAt string              `json:"created_at"`
}

type SceneResponse struct {
	Index        int     `json:"index"`
	FileName     string  `json:"file_name"`
	SourceVideo  string  `json:"source_video"`
	SceneNumber  int     `json:"scene_number"`
	Format       string  `json:"format"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	Duration     float64 `json:"duration"`
	Size         int     `json:"size"`
	ArtifactURL  string  `json:"artifact_url"`
	ThumbnailURL string  `json:"thumbnail_url"`
}

type ScenesResponse struct {
	Sources []string        `json:"sources"`
	Scenes  []SceneResponse `json:"scenes"`
}

type ArchiveRequest struct {
	Indices []int `json:"indices"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func BatchToResponse(s session.Snapshot) BatchResponse {
	return BatchResponse{
		ID:        s.ID,
		State:     string(s.State),
		Progress:  s.Progress,
		Status:    s.Status,
		Scenes:    s.Scenes,
		Failures:  s.Failures,
		Videos:    s.Videos,
		Error:     s.Error,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func SceneToResponse(batchID string, index int, a scene.SceneArtifact) SceneResponse {
	base := fmt.Sprintf("/batches/%s/scenes/%d", batchID, index)
	return SceneResponse{
		Index:        index,
		FileName:     a.FileName(),
		SourceVideo:  a.SourceName,
		SceneNumber:  a.SceneIndex,
		Format:       string(a.Format),
		StartTime:    a.Start,
		EndTime:      a.End,
		Duration:     a.Duration,
		Size:         len(a.ArtifactBytes),
		ArtifactURL:  base + "/artifact",
		ThumbnailURL: base + "/thumbnail",
	}
}
