package domain

import (
	"time"
)

// DeploymentState represents the observed state of a cluster deployment
type DeploymentState string

const (
	DeploymentPending DeploymentState = "PENDING"
	DeploymentReady   DeploymentState = "READY"
	DeploymentFailed  DeploymentState = "FAILED"
)

// Deployment is a model served from a published base path inside a cluster
type Deployment struct {
	Name           string            `json:"name"`
	Namespace      string            `json:"namespace"`
	ModelName      string            `json:"model_name"`
	StorageURI     string            `json:"storage_uri"`
	RuntimeVersion string            `json:"runtime_version,omitempty"`
	ExternalID     string            `json:"external_id,omitempty"` // K8s resource UID
	State          DeploymentState   `json:"state"`
	URL            string            `json:"url,omitempty"`
	LastError      string            `json:"last_error,omitempty"`
	Labels         map[string]string `json:"labels"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// NewDeployment creates a new Deployment with validation
func NewDeployment(name, namespace, modelName, storageURI string) (*Deployment, error) {
	if err := ValidateModelName(modelName); err != nil {
		return nil, err
	}
	if name == "" {
		name = modelName
	}
	if err := ValidateModelName(name); err != nil {
		return nil, err
	}
	if storageURI == "" {
		return nil, ErrInvalidStorageURI
	}
	return &Deployment{
		Name:       name,
		Namespace:  namespace,
		ModelName:  modelName,
		StorageURI: storageURI,
		State:      DeploymentPending,
		Labels:     make(map[string]string),
		UpdatedAt:  time.Now(),
	}, nil
}

// MarkReady updates state to ready with endpoint URL
func (d *Deployment) MarkReady(url string) {
	d.State = DeploymentReady
	d.URL = url
	d.LastError = ""
	d.UpdatedAt = time.Now()
}

// MarkFailed records deployment failure
func (d *Deployment) MarkFailed(err string) {
	d.State = DeploymentFailed
	d.LastError = err
	d.UpdatedAt = time.Now()
}

// SetExternalID sets the K8s resource UID
func (d *Deployment) SetExternalID(externalID string) {
	d.ExternalID = externalID
	d.UpdatedAt = time.Now()
}
