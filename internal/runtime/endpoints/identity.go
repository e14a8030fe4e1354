package endpoints

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Identity is the account and region the process runs in.
type Identity struct {
	AccountID string
	Region    string
}

// IdentityProvider discovers the process identity.
type IdentityProvider interface {
	Identity(ctx context.Context) (Identity, error)
}

// IdentityProviderFunc adapts a function to IdentityProvider.
type IdentityProviderFunc func(ctx context.Context) (Identity, error)

func (f IdentityProviderFunc) Identity(ctx context.Context) (Identity, error) {
	return f(ctx)
}

// RoleVerifier returns the ARN of the caller's current identity.
type RoleVerifier interface {
	CallerARN(ctx context.Context) (string, error)
}

// RoleVerifierFunc adapts a function to RoleVerifier.
type RoleVerifierFunc func(ctx context.Context) (string, error)

func (f RoleVerifierFunc) CallerARN(ctx context.Context) (string, error) {
	return f(ctx)
}

// IMDSAPI is the subset of the instance metadata client used here.
type IMDSAPI interface {
	GetInstanceIdentityDocument(ctx context.Context, params *imds.GetInstanceIdentityDocumentInput, optFns ...func(*imds.Options)) (*imds.GetInstanceIdentityDocumentOutput, error)
}

// STSAPI is the subset of the STS client used here.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

var (
	IMDSClientFactory = func() IMDSAPI {
		return imds.New(imds.Options{})
	}
	STSClientFactory = func(ctx context.Context, region string) (STSAPI, error) {
		var opts []func(*awsconfig.LoadOptions) error
		if region != "" {
			opts = append(opts, awsconfig.WithRegion(region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return sts.NewFromConfig(cfg), nil
	}
)

// IMDSIdentity reads the instance identity document.
type IMDSIdentity struct {
	client IMDSAPI
}

// NewIMDSIdentity returns an IdentityProvider backed by the EC2 instance
// metadata service.
func NewIMDSIdentity() *IMDSIdentity {
	return &IMDSIdentity{client: IMDSClientFactory()}
}

func (p *IMDSIdentity) Identity(ctx context.Context) (Identity, error) {
	doc, err := p.client.GetInstanceIdentityDocument(ctx, &imds.GetInstanceIdentityDocumentInput{})
	if err != nil {
		return Identity{}, err
	}
	if doc.AccountID == "" || doc.Region == "" {
		return Identity{}, errors.New("instance identity document is missing account id or region")
	}
	return Identity{AccountID: doc.AccountID, Region: doc.Region}, nil
}

// STSRoleVerifier asks STS for the caller identity.
type STSRoleVerifier struct {
	region string
}

// NewSTSRoleVerifier returns a RoleVerifier using STS in region.
func NewSTSRoleVerifier(region string) *STSRoleVerifier {
	return &STSRoleVerifier{region: region}
}

func (v *STSRoleVerifier) CallerARN(ctx context.Context) (string, error) {
	client, err := STSClientFactory(ctx, v.region)
	if err != nil {
		return "", err
	}
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.Arn), nil
}
