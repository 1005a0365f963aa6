package kserve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"serving-optimizer/internal/config"
	"serving-optimizer/internal/core/domain"
	ports "serving-optimizer/internal/core/ports/output"
)

const (
	labelManagedBy = "serving-optimizer/managed-by"
	labelModelName = "serving-optimizer/model-name"

	modelFormat = "tensorflow"
)

var inferenceServiceGVR = schema.GroupVersionResource{
	Group:    "serving.kserve.io",
	Version:  "v1beta1",
	Resource: "inferenceservices",
}

type kserveClient struct {
	client         dynamic.Interface
	enabled        bool
	defaultNS      string
	runtimeVersion string
}

// NewKServeClient creates a new KServe client adapter
func NewKServeClient(cfg *config.KubernetesConfig) (ports.KServeClient, error) {
	if !cfg.Enabled {
		return &kserveClient{enabled: false}, nil
	}

	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		home, _ := os.UserHomeDir()
		restCfg, err = clientcmd.BuildConfigFromFlags("", filepath.Join(home, ".kube", "config"))
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	client, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	return newWithDynamic(client, cfg), nil
}

func newWithDynamic(client dynamic.Interface, cfg *config.KubernetesConfig) *kserveClient {
	defaultNS := cfg.DefaultNS
	if defaultNS == "" {
		defaultNS = "model-serving"
	}
	return &kserveClient{
		client:         client,
		enabled:        true,
		defaultNS:      defaultNS,
		runtimeVersion: cfg.RuntimeVersion,
	}
}

func (c *kserveClient) IsAvailable() bool {
	return c.enabled
}

func (c *kserveClient) namespace(ns string) string {
	if ns == "" {
		return c.defaultNS
	}
	return ns
}

func (c *kserveClient) Deploy(ctx context.Context, d *domain.Deployment) (*ports.KServeDeployment, error) {
	if !c.enabled {
		return nil, domain.ErrKServeNotAvailable
	}
	if d.RuntimeVersion == "" {
		d.RuntimeVersion = c.runtimeVersion
	}

	obj := buildInferenceServiceCR(d)
	created, err := c.client.Resource(inferenceServiceGVR).
		Namespace(c.namespace(d.Namespace)).
		Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil, domain.ErrDeploymentNameExists
		}
		return nil, fmt.Errorf("create kserve inferenceservice: %w", err)
	}

	log.WithFields(log.Fields{
		"name":        d.Name,
		"namespace":   c.namespace(d.Namespace),
		"storage_uri": d.StorageURI,
	}).Info("inferenceservice created")

	url, _, _ := unstructured.NestedString(created.Object, "status", "url")
	return &ports.KServeDeployment{
		ExternalID: string(created.GetUID()),
		URL:        url,
	}, nil
}

func (c *kserveClient) Undeploy(ctx context.Context, namespace, name string) error {
	if !c.enabled {
		return domain.ErrKServeNotAvailable
	}

	err := c.client.Resource(inferenceServiceGVR).
		Namespace(c.namespace(namespace)).
		Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return domain.ErrDeploymentNotFound
		}
		return fmt.Errorf("delete kserve inferenceservice: %w", err)
	}
	return nil
}

func (c *kserveClient) GetStatus(ctx context.Context, namespace, name string) (*ports.KServeStatus, error) {
	if !c.enabled {
		return nil, domain.ErrKServeNotAvailable
	}

	obj, err := c.client.Resource(inferenceServiceGVR).
		Namespace(c.namespace(namespace)).
		Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, domain.ErrDeploymentNotFound
		}
		return nil, fmt.Errorf("get kserve inferenceservice: %w", err)
	}

	return parseStatus(obj), nil
}

// buildInferenceServiceCR renders a v1beta1 InferenceService whose predictor
// loads the numbered versions under StorageURI with the TensorFlow runtime.
func buildInferenceServiceCR(d *domain.Deployment) *unstructured.Unstructured {
	labels := map[string]interface{}{
		labelManagedBy: "serving-optimizer",
		labelModelName: d.ModelName,
	}
	for k, v := range d.Labels {
		labels[k] = v
	}

	format := map[string]interface{}{"name": modelFormat}
	if d.RuntimeVersion != "" {
		format["version"] = d.RuntimeVersion
	}

	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "serving.kserve.io/v1beta1",
			"kind":       "InferenceService",
			"metadata": map[string]interface{}{
				"name":   d.Name,
				"labels": labels,
			},
			"spec": map[string]interface{}{
				"predictor": map[string]interface{}{
					"model": map[string]interface{}{
						"modelFormat": format,
						"storageUri":  d.StorageURI,
					},
				},
			},
		},
	}
}

func parseStatus(obj *unstructured.Unstructured) *ports.KServeStatus {
	status := &ports.KServeStatus{}

	statusMap, found, _ := unstructured.NestedMap(obj.Object, "status")
	if !found {
		return status
	}

	status.URL, _, _ = unstructured.NestedString(statusMap, "url")

	conditions, found, _ := unstructured.NestedSlice(statusMap, "conditions")
	if !found {
		return status
	}
	for _, cond := range conditions {
		condMap, ok := cond.(map[string]interface{})
		if !ok {
			continue
		}
		if condType, _ := condMap["type"].(string); condType != "Ready" {
			continue
		}
		condStatus, _ := condMap["status"].(string)
		status.Ready = condStatus == "True"
		if condStatus == "False" {
			status.Error, _ = condMap["message"].(string)
		}
		break
	}
	return status
}

// Ensure interface compliance
var _ ports.KServeClient = (*kserveClient)(nil)
