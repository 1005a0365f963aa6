package dto

import "serving-optimizer/internal/core/domain"

type VersionResponse struct {
	Version   int64  `json:"version"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

type ListVersionsResponse struct {
	ModelName   string            `json:"model_name"`
	Items       []VersionResponse `json:"items"`
	NextVersion int64             `json:"next_version"`
}

type PublishVersionResponse struct {
	ModelName string `json:"model_name"`
	Version   int64  `json:"version"`
	URI       string `json:"uri"`
}

func ToListVersionsResponse(modelName string, versions []domain.ModelVersion, next int64) ListVersionsResponse {
	items := make([]VersionResponse, 0, len(versions))
	for _, v := range versions {
		items = append(items, VersionResponse{Version: v.Version, Path: v.Path, SizeBytes: v.SizeBytes})
	}
	return ListVersionsResponse{ModelName: modelName, Items: items, NextVersion: next}
}
