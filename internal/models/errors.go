package models

import "fmt"

// NotFoundError is returned when an identity does not resolve to an entity of the given kind.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }

func NewNotFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }

// BadRequestError wraps a malformed or self-contradictory request.
type BadRequestError struct{ Msg string }

func (e *BadRequestError) Error() string { return e.Msg }

func NewBadRequest(format string, args ...interface{}) error {
	return &BadRequestError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidSpecError wraps a profile/policy spec that failed validation.
type InvalidSpecError struct{ Msg string }

func (e *InvalidSpecError) Error() string { return e.Msg }

func NewInvalidSpec(format string, args ...interface{}) error {
	return &InvalidSpecError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidParameterError names the offending parameter and the value that failed validation.
type InvalidParameterError struct {
	Name  string
	Value interface{}
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid value for parameter %q: %v", e.Name, e.Value)
}

func NewInvalidParameter(name string, value interface{}) error {
	return &InvalidParameterError{Name: name, Value: value}
}

// ResourceInUseError is returned when a destroy is blocked by a dependent resource.
type ResourceInUseError struct {
	Kind string
	ID   string
}

func (e *ResourceInUseError) Error() string { return fmt.Sprintf("%s %s is in use", e.Kind, e.ID) }

func NewResourceInUse(kind, id string) error { return &ResourceInUseError{Kind: kind, ID: id} }

// ResourceBusyError is returned when a target cannot be locked because another action holds it.
type ResourceBusyError struct{ TargetID string }

func (e *ResourceBusyError) Error() string {
	return fmt.Sprintf("resource %s is busy with another action", e.TargetID)
}

func NewResourceBusy(targetID string) error { return &ResourceBusyError{TargetID: targetID} }

// PolicyBindingNotFoundError is returned when a (cluster, policy) binding does not exist.
type PolicyBindingNotFoundError struct {
	ClusterID string
	PolicyID  string
}

func (e *PolicyBindingNotFoundError) Error() string {
	return fmt.Sprintf("policy %s is not attached to cluster %s", e.PolicyID, e.ClusterID)
}

func NewPolicyBindingNotFound(clusterID, policyID string) error {
	return &PolicyBindingNotFoundError{ClusterID: clusterID, PolicyID: policyID}
}

// ProfileTypeNotMatchError is returned when a node's profile type disagrees with its cluster's.
type ProfileTypeNotMatchError struct {
	Expected string
	Actual   string
}

func (e *ProfileTypeNotMatchError) Error() string {
	return fmt.Sprintf("profile type mismatch: cluster requires %q, got %q", e.Expected, e.Actual)
}

func NewProfileTypeNotMatch(expected, actual string) error {
	return &ProfileTypeNotMatchError{Expected: expected, Actual: actual}
}

// NodeNotOrphanError is returned when an operation requiring an orphan node is given a member node.
type NodeNotOrphanError struct{ NodeID string }

func (e *NodeNotOrphanError) Error() string {
	return fmt.Sprintf("node %s already belongs to a cluster", e.NodeID)
}

func NewNodeNotOrphan(nodeID string) error { return &NodeNotOrphanError{NodeID: nodeID} }

// FeatureNotSupportedError is returned for a recognized but unimplemented capability.
type FeatureNotSupportedError struct{ Feature string }

func (e *FeatureNotSupportedError) Error() string {
	return fmt.Sprintf("feature not supported: %s", e.Feature)
}

func NewFeatureNotSupported(feature string) error {
	return &FeatureNotSupportedError{Feature: feature}
}

// ForbiddenError is returned when the caller's trust context does not authorize the operation.
type ForbiddenError struct{ Msg string }

func (e *ForbiddenError) Error() string { return e.Msg }

func NewForbidden(format string, args ...interface{}) error {
	return &ForbiddenError{Msg: fmt.Sprintf(format, args...)}
}

// InternalError wraps an unexpected failure that should not be surfaced verbatim to clients.
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *InternalError) Unwrap() error { return e.Err }

func NewInternal(msg string, err error) error { return &InternalError{Msg: msg, Err: err} }
