// Package k8sdriver is the reference ComputeDriver/LBaaSDriver implementation:
// nodes are realized as Pods, and the LB-membership policy's pool as a
// Service of type LoadBalancer whose Endpoints are individual Pod IPs.
// Connections resolve kubeconfig or in-cluster config, with a rate.Limiter
// in front of every API call.
package k8sdriver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/clustermgr/engine/internal/driver"
	"github.com/clustermgr/engine/internal/models"
)

// Driver wraps a Kubernetes clientset and realizes both registry.ProfileDriver
// (node provisioning) and driver.LBaaSDriver (pool membership) against it.
// One Driver instance is shared by every action the dispatcher runs; the rate
// limiter bounds how fast the worker pool hits the API server regardless of
// how many actions target this cluster concurrently.
type Driver struct {
	clientset kubernetes.Interface
	namespace string
	limiter   *rate.Limiter
}

// New builds a Driver from a kubeconfig path; an empty string tries in-cluster
// config first, then $HOME/.kube/config.
func New(kubeconfigPath, namespace string, ratePerSec float64, burst int) (*Driver, error) {
	config, err := resolveConfig(kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("k8sdriver: resolve config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("k8sdriver: build clientset: %w", err)
	}
	if namespace == "" {
		namespace = "default"
	}
	if ratePerSec <= 0 {
		ratePerSec = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &Driver{
		clientset: clientset,
		namespace: namespace,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}, nil
}

func resolveConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
		if home, _ := os.UserHomeDir(); home != "" {
			kubeconfigPath = filepath.Join(home, ".kube", "config")
		}
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
}

func (d *Driver) wait(ctx context.Context) error {
	return d.limiter.Wait(ctx)
}

// --- registry.ProfileDriver: nodes realized as Pods ---

// Validate checks that spec carries at least an image; other fields are
// passed through to the Pod spec verbatim.
func (d *Driver) Validate(ctx context.Context, spec models.JSONMap) error {
	if _, ok := spec["image"].(string); !ok {
		return models.NewInvalidSpec("profile spec requires a string \"image\" field")
	}
	return nil
}

func (d *Driver) Create(ctx context.Context, node *models.Node, spec models.JSONMap) error {
	if err := d.wait(ctx); err != nil {
		return err
	}
	image, _ := spec["image"].(string)
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      podName(node),
			Namespace: d.namespace,
			Labels: map[string]string{
				"clustermgr.io/node-id":    node.ID,
				"clustermgr.io/cluster-id": derefOr(node.ClusterID, ""),
			},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{{
				Name:  "node",
				Image: image,
			}},
		},
	}
	created, err := d.clientset.CoreV1().Pods(d.namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("k8sdriver: create pod: %w", err)
	}
	node.PhysicalID = string(created.UID)
	return nil
}

func (d *Driver) Update(ctx context.Context, node *models.Node, spec models.JSONMap) error {
	if err := d.wait(ctx); err != nil {
		return err
	}
	pod, err := d.clientset.CoreV1().Pods(d.namespace).Get(ctx, podName(node), metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return models.NewNotFound("node_physical", node.ID)
		}
		return fmt.Errorf("k8sdriver: get pod: %w", err)
	}
	if image, ok := spec["image"].(string); ok && len(pod.Spec.Containers) > 0 {
		pod.Spec.Containers[0].Image = image
	}
	_, err = d.clientset.CoreV1().Pods(d.namespace).Update(ctx, pod, metav1.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("k8sdriver: update pod: %w", err)
	}
	return nil
}

func (d *Driver) Delete(ctx context.Context, node *models.Node) error {
	if err := d.wait(ctx); err != nil {
		return err
	}
	err := d.clientset.CoreV1().Pods(d.namespace).Delete(ctx, podName(node), metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("k8sdriver: delete pod: %w", err)
	}
	return nil
}

func podName(node *models.Node) string { return "node-" + node.ID }

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// --- driver.LBaaSDriver: pool realized as a Service of type LoadBalancer ---

func (d *Driver) CreateLoadBalancer(ctx context.Context, cluster *models.Cluster, props models.JSONMap) (driver.LoadBalancer, error) {
	if err := d.wait(ctx); err != nil {
		return driver.LoadBalancer{}, err
	}
	port := int32(80)
	if p, ok := props["port"].(float64); ok {
		port = int32(p)
	}
	svcName := "lb-" + cluster.ID
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      svcName,
			Namespace: d.namespace,
			Labels:    map[string]string{"clustermgr.io/cluster-id": cluster.ID},
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeLoadBalancer,
			Selector: map[string]string{"clustermgr.io/cluster-id": cluster.ID},
			Ports: []corev1.ServicePort{{
				Port:       port,
				TargetPort: intstr.FromInt(int(port)),
			}},
		},
	}
	created, err := d.clientset.CoreV1().Services(d.namespace).Create(ctx, svc, metav1.CreateOptions{})
	if err != nil {
		return driver.LoadBalancer{}, fmt.Errorf("k8sdriver: create service: %w", err)
	}
	vip := created.Spec.ClusterIP
	if len(created.Status.LoadBalancer.Ingress) > 0 {
		vip = created.Status.LoadBalancer.Ingress[0].IP
	}
	return driver.LoadBalancer{
		LoadBalancerID: svcName,
		PoolID:         svcName,
		VIPAddress:     vip,
	}, nil
}

func (d *Driver) DeleteLoadBalancer(ctx context.Context, lb driver.LoadBalancer) error {
	if err := d.wait(ctx); err != nil {
		return err
	}
	err := d.clientset.CoreV1().Services(d.namespace).Delete(ctx, lb.LoadBalancerID, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("k8sdriver: delete service: %w", err)
	}
	return nil
}

// AddMember does nothing beyond waiting on the limiter and reading the pool's
// Endpoints (any error but NotFound is returned): pool membership is
// driven by the Service's label selector matching the node's Pod labels, so
// adding a member is implicit once the Pod exists with the right cluster-id
// label (set at Create time). The call still goes through the driver so the
// policy's pre/post-hook contract has a concrete place to observe failures.
func (d *Driver) AddMember(ctx context.Context, lb driver.LoadBalancer, node *models.Node) error {
	if err := d.wait(ctx); err != nil {
		return err
	}
	_, err := d.clientset.CoreV1().Endpoints(d.namespace).Get(ctx, lb.PoolID, metav1.GetOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("k8sdriver: verify pool endpoints: %w", err)
	}
	return nil
}

// RemoveMember is symmetric with AddMember: membership tracks Pod deletion,
// so this only verifies the pool still exists.
func (d *Driver) RemoveMember(ctx context.Context, lb driver.LoadBalancer, nodeID string) error {
	if err := d.wait(ctx); err != nil {
		return err
	}
	_, err := d.clientset.CoreV1().Services(d.namespace).Get(ctx, lb.PoolID, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("k8sdriver: verify pool: %w", err)
	}
	return nil
}
