package workflows

import (
	"context"
	"net/http"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/normalize"
	"github.com/opsdeck/opsdeck/pkg/policy"
)

// EndpointParams describes an endpoint to create on a service.
type EndpointParams struct {
	EnvironmentID string              `json:"environment_id" yaml:"environment_id"`
	ServiceID     string              `json:"service_id" yaml:"service_id" validate:"required"`
	Type          engine.EndpointType `json:"type" yaml:"type" validate:"required,oneof=default managed custom"`

	// CertID selects an existing certificate. When it is empty, a custom
	// endpoint creates one from Cert and PrivKey.
	CertID  string `json:"cert_id,omitempty" yaml:"cert_id,omitempty"`
	Cert    string `json:"cert,omitempty" yaml:"cert,omitempty"`
	PrivKey string `json:"priv_key,omitempty" yaml:"priv_key,omitempty"`

	UserDomain    string   `json:"user_domain,omitempty" yaml:"user_domain,omitempty" validate:"omitempty,fqdn"`
	Internal      bool     `json:"internal" yaml:"internal"`
	ContainerPort string   `json:"container_port,omitempty" yaml:"container_port,omitempty" validate:"omitempty,numeric"`
	IPAllowlist   []string `json:"ip_allowlist,omitempty" yaml:"ip_allowlist,omitempty" validate:"dive,cidr|ip"`
	Platform      string   `json:"platform,omitempty" yaml:"platform,omitempty" validate:"omitempty,oneof=alb elb"`
}

func (p EndpointParams) certificate() error {
	switch p.Type {
	case engine.EndpointTypeCustom:
		if p.CertID != "" {
			return nil
		}
		if p.Cert == "" || p.PrivKey == "" {
			return engine.NewValidationError("custom endpoints require cert_id or both cert and priv_key")
		}
		if p.EnvironmentID == "" {
			return engine.NewValidationError("environment_id is required to create a certificate")
		}
	case engine.EndpointTypeManaged:
		if p.UserDomain == "" {
			return engine.NewValidationError("user_domain is required for managed endpoints")
		}
	}
	return nil
}

// redacted returns the parameters without the private key.
func (p EndpointParams) redacted() EndpointParams {
	if p.PrivKey != "" {
		p.PrivKey = "[redacted]"
	}
	return p
}

// CreateEndpoint creates an endpoint on a service and its provision
// operation, creating a certificate first when a custom endpoint was given
// PEM material instead of a certificate ID.
//
// Each step runs only when the previous one succeeded. Every ID created
// before a failure is kept on the result.
func (o *Orchestrator) CreateEndpoint(ctx context.Context, params EndpointParams) *Result {
	ctx, r := o.begin(ctx, WorkflowCreateEndpoint)
	res := r.result

	if err := validateParams(params); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}
	if err := params.certificate(); err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}
	err := r.admit(ctx, policy.Input{
		Resource: &policy.ResourceInput{
			Type:          engine.ResourceTypeEndpoint,
			EnvironmentID: params.EnvironmentID,
		},
		Operation: &engine.CreateOperationParams{Type: engine.OperationProvision},
		Params:    params.redacted(),
	})
	if err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}

	// Step 1: certificate
	certID := params.CertID
	if params.Type.RequiresCertificate() && certID == "" {
		cert, err := o.createCertificate(ctx, params)
		if err != nil {
			res.fail(err)
			return r.finish(ctx, "")
		}
		certID = cert.ID
		res.CertificateID = cert.ID
		r.outbox.ResourceCreated(engine.ResourceRef{Type: engine.ResourceTypeCertificate, ID: cert.ID})
	}

	// Step 2: endpoint
	endpoint, err := o.createEndpoint(ctx, params, certID)
	if err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}
	ref := engine.ResourceRef{Type: engine.ResourceTypeEndpoint, ID: endpoint.ID}
	res.EndpointID = endpoint.ID
	r.outbox.ResourceCreated(ref)

	// Step 3: provision operation
	op, err := o.createOperation(ctx, r, ref, engine.CreateOperationParams{Type: engine.OperationProvision})
	if err != nil {
		res.fail(err)
		return r.finish(ctx, "")
	}
	res.Operation = op
	res.OperationID = op.ID
	o.watch(op)

	return r.finish(ctx, "Endpoint is provisioning")
}

func (o *Orchestrator) createCertificate(ctx context.Context, params EndpointParams) (engine.Certificate, error) {
	var resp normalize.CertificateResponse
	err := o.transport.Do(ctx, engine.Request{
		Method: http.MethodPost,
		Path:   "/accounts/:envId/certificates",
		Params: map[string]string{"envId": params.EnvironmentID},
		Body: map[string]any{
			"certificate_body": params.Cert,
			"private_key":      params.PrivKey,
		},
	}, &resp)
	if err != nil {
		return engine.Certificate{}, err
	}

	cert := normalize.Certificate(resp)
	if cert.ID == "" {
		return cert, engine.NewPermanentError("Certificate was created without an ID", nil).WithCode(engine.ErrCodeDecode)
	}
	if cert.EnvironmentID == "" {
		cert.EnvironmentID = params.EnvironmentID
	}
	o.store.Certificates.Add(cert)
	return cert, nil
}

func (o *Orchestrator) createEndpoint(ctx context.Context, params EndpointParams, certID string) (engine.Endpoint, error) {
	platform := params.Platform
	if platform == "" {
		platform = "alb"
	}

	body := map[string]any{
		"type":     "http_proxy_protocol",
		"platform": platform,
		"default":  params.Type == engine.EndpointTypeDefault,
		"acme":     params.Type == engine.EndpointTypeManaged,
		"internal": params.Internal,
	}
	if certID != "" {
		body["certificate"] = "/certificates/" + certID
	}
	if params.UserDomain != "" {
		body["user_domain"] = params.UserDomain
	}
	if params.ContainerPort != "" {
		body["container_port"] = params.ContainerPort
	}
	if len(params.IPAllowlist) > 0 {
		body["ip_whitelist"] = params.IPAllowlist
	}

	var resp normalize.EndpointResponse
	err := o.transport.Do(ctx, engine.Request{
		Method: http.MethodPost,
		Path:   "/services/:serviceId/vhosts",
		Params: map[string]string{"serviceId": params.ServiceID},
		Body:   body,
	}, &resp)
	if err != nil {
		return engine.Endpoint{}, err
	}

	endpoint := normalize.Endpoint(resp)
	if endpoint.ID == "" {
		return endpoint, engine.NewPermanentError("Endpoint was created without an ID", nil).WithCode(engine.ErrCodeDecode)
	}
	if endpoint.ServiceID == "" {
		endpoint.ServiceID = params.ServiceID
	}
	if endpoint.CertificateID == "" {
		endpoint.CertificateID = certID
	}
	o.store.Endpoints.Add(endpoint)
	return endpoint, nil
}
