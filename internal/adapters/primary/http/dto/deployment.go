package dto

import (
	"time"

	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
	"serving-optimizer/internal/core/services"
)

// ============================================================================
// Deployment DTOs
// ============================================================================

type CreateDeploymentRequest struct {
	Name           string            `json:"name" binding:"max=63"`
	Namespace      string            `json:"namespace"`
	ModelName      string            `json:"model_name" binding:"required,max=100"`
	StorageURI     string            `json:"storage_uri"`
	RuntimeVersion string            `json:"runtime_version"`
	Labels         map[string]string `json:"labels"`
}

func (r *CreateDeploymentRequest) ToDeployRequest() services.DeployRequest {
	return services.DeployRequest{
		Name:           r.Name,
		Namespace:      r.Namespace,
		ModelName:      r.ModelName,
		StorageURI:     r.StorageURI,
		RuntimeVersion: r.RuntimeVersion,
		Labels:         r.Labels,
	}
}

type DeploymentResponse struct {
	Name           string                   `json:"name"`
	Namespace      string                   `json:"namespace,omitempty"`
	ModelName      string                   `json:"model_name,omitempty"`
	StorageURI     string                   `json:"storage_uri,omitempty"`
	RuntimeVersion string                   `json:"runtime_version,omitempty"`
	ExternalID     string                   `json:"external_id,omitempty"`
	State          domain.DeploymentState   `json:"state"`
	URL            string                   `json:"url,omitempty"`
	LastError      string                   `json:"last_error,omitempty"`
	Labels         map[string]string        `json:"labels"`
	UpdatedAt      time.Time                `json:"updated_at"`
	Metrics        *ports.DeploymentMetrics `json:"metrics,omitempty"`
}

func ToDeploymentResponse(d *domain.Deployment) DeploymentResponse {
	return DeploymentResponse{
		Name:           d.Name,
		Namespace:      d.Namespace,
		ModelName:      d.ModelName,
		StorageURI:     d.StorageURI,
		RuntimeVersion: d.RuntimeVersion,
		ExternalID:     d.ExternalID,
		State:          d.State,
		URL:            d.URL,
		LastError:      d.LastError,
		Labels:         d.Labels,
		UpdatedAt:      d.UpdatedAt,
	}
}
