// Package accounts provisions and deregisters AWS Control Tower accounts
// through the Service Catalog account factory product.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/servicecatalog"
	sctypes "github.com/aws/aws-sdk-go-v2/service/servicecatalog/types"
	"github.com/google/uuid"

	"github.com/eculver/aws-accounts/pkg/poll"
)

// defaultProductKeyword identifies the Control Tower account factory
// product in the Service Catalog.
const defaultProductKeyword = "AWS Control Tower Account Factory"

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 30 * time.Second
)

// CatalogAPI is the subset of the Service Catalog API used by the service.
type CatalogAPI interface {
	SearchProductsAsAdmin(ctx context.Context, params *servicecatalog.SearchProductsAsAdminInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.SearchProductsAsAdminOutput, error)
	DescribeProductAsAdmin(ctx context.Context, params *servicecatalog.DescribeProductAsAdminInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.DescribeProductAsAdminOutput, error)
	DescribeProvisioningArtifact(ctx context.Context, params *servicecatalog.DescribeProvisioningArtifactInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.DescribeProvisioningArtifactOutput, error)
	ProvisionProduct(ctx context.Context, params *servicecatalog.ProvisionProductInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.ProvisionProductOutput, error)
	SearchProvisionedProducts(ctx context.Context, params *servicecatalog.SearchProvisionedProductsInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.SearchProvisionedProductsOutput, error)
	TerminateProvisionedProduct(ctx context.Context, params *servicecatalog.TerminateProvisionedProductInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.TerminateProvisionedProductOutput, error)
	DescribeRecord(ctx context.Context, params *servicecatalog.DescribeRecordInput, optFns ...func(*servicecatalog.Options)) (*servicecatalog.DescribeRecordOutput, error)
}

// Service drives Control Tower account lifecycle operations.
type Service struct {
	catalog        CatalogAPI
	logger         *slog.Logger
	productKeyword string
	pollInterval   time.Duration
	pollTimeout    time.Duration
}

// Option configures a [Service].
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithProductKeyword overrides the keyword used to locate the account
// factory product.
func WithProductKeyword(keyword string) Option {
	return func(s *Service) {
		s.productKeyword = keyword
	}
}

// WithPollInterval sets the interval between record status checks.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		s.pollInterval = d
	}
}

// WithPollTimeout sets the total budget for waiting on a record to reach
// a terminal state.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.pollTimeout = d
	}
}

// New creates an account lifecycle service over the given Service Catalog
// client.
func New(catalog CatalogAPI, opts ...Option) *Service {
	s := &Service{
		catalog:        catalog,
		logger:         slog.Default(),
		productKeyword: defaultProductKeyword,
		pollInterval:   defaultPollInterval,
		pollTimeout:    defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount provisions a new Control Tower account and waits for the
// provisioning record to reach a terminal state. A FAILED record is
// returned alongside an error carrying the record's failure details.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (*Record, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	productID, err := s.accountFactoryProductID(ctx)
	if err != nil {
		return nil, err
	}

	artifactID, err := s.activeArtifactID(ctx, productID)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	out, err := s.catalog.ProvisionProduct(ctx, &servicecatalog.ProvisionProductInput{
		ProductId:              awsv2.String(productID),
		ProvisioningArtifactId: awsv2.String(artifactID),
		ProvisionedProductName: awsv2.String("AccountCreation-" + token),
		ProvisionToken:         awsv2.String(token),
		ProvisioningParameters: []sctypes.ProvisioningParameter{
			{Key: awsv2.String("AccountName"), Value: awsv2.String(in.Name)},
			{Key: awsv2.String("AccountEmail"), Value: awsv2.String(in.Email)},
			{Key: awsv2.String("ManagedOrganizationalUnit"), Value: awsv2.String(in.OrgUnit)},
			{Key: awsv2.String("SSOUserEmail"), Value: awsv2.String(in.SSOUserEmail)},
			{Key: awsv2.String("SSOUserFirstName"), Value: awsv2.String(in.SSOUserFirstName)},
			{Key: awsv2.String("SSOUserLastName"), Value: awsv2.String(in.SSOUserLastName)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision account product: %w", err)
	}
	if out.RecordDetail == nil || out.RecordDetail.RecordId == nil {
		return nil, errors.New("provision product returned no record")
	}

	recordID := awsv2.ToString(out.RecordDetail.RecordId)
	s.logger.Info("account provisioning requested",
		"account_name", in.Name, "product_id", productID, "record_id", recordID)

	detail, err := s.waitForRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	record := recordFromDetail(detail)
	if detail.Status == sctypes.RecordStatusFailed {
		return record, fmt.Errorf("account provisioning failed: %s", recordErrors(detail))
	}

	s.logger.Info("account provisioned",
		"account_name", in.Name, "provisioned_product_id", record.ProvisionedProductID)
	return record, nil
}

// TerminateAccount deregisters an account by terminating every AVAILABLE
// provisioned product associated with it, waiting for each termination
// record to reach a terminal state. A missing account yields an empty
// result, not an error.
func (s *Service) TerminateAccount(ctx context.Context, accountID string) ([]Record, error) {
	if accountID == "" {
		return nil, errors.New("account ID is required")
	}

	ids, err := s.provisionedProductIDs(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		s.logger.Info("no provisioned products found", "account_id", accountID)
		return nil, nil
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		out, err := s.catalog.TerminateProvisionedProduct(ctx, &servicecatalog.TerminateProvisionedProductInput{
			ProvisionedProductId: awsv2.String(id),
			TerminateToken:       awsv2.String(uuid.NewString()),
			IgnoreErrors:         true,
		})
		if err != nil {
			return records, fmt.Errorf("failed to terminate provisioned product %s: %w", id, err)
		}
		if out.RecordDetail == nil || out.RecordDetail.RecordId == nil {
			return records, fmt.Errorf("terminate of provisioned product %s returned no record", id)
		}

		recordID := awsv2.ToString(out.RecordDetail.RecordId)
		s.logger.Info("account termination requested",
			"account_id", accountID, "provisioned_product_id", id, "record_id", recordID)

		detail, err := s.waitForRecord(ctx, recordID)
		if err != nil {
			return records, err
		}

		record := recordFromDetail(detail)
		records = append(records, *record)
		if detail.Status == sctypes.RecordStatusFailed {
			return records, fmt.Errorf("termination of provisioned product %s failed: %s", id, recordErrors(detail))
		}
	}

	s.logger.Info("account terminated", "account_id", accountID, "provisioned_products", ids)
	return records, nil
}

// waitForRecord polls DescribeRecord until the record leaves its pending
// states.
func (s *Service) waitForRecord(ctx context.Context, recordID string) (*sctypes.RecordDetail, error) {
	return poll.Until(ctx,
		func(ctx context.Context) (*sctypes.RecordDetail, error) {
			out, err := s.catalog.DescribeRecord(ctx, &servicecatalog.DescribeRecordInput{
				Id: awsv2.String(recordID),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to describe record %s: %w", recordID, err)
			}
			if out.RecordDetail == nil {
				return nil, fmt.Errorf("describe record %s returned no detail", recordID)
			}
			return out.RecordDetail, nil
		},
		recordPending,
		poll.WithInterval(s.pollInterval),
		poll.WithTimeout(s.pollTimeout),
		poll.WithLogger(s.logger),
	)
}

func recordPending(detail *sctypes.RecordDetail) bool {
	switch detail.Status {
	case sctypes.RecordStatusCreated, sctypes.RecordStatusInProgress, sctypes.RecordStatusInProgressInError:
		return true
	}
	return false
}

// accountFactoryProductID locates the account factory product by keyword.
// Exactly one match is required.
func (s *Service) accountFactoryProductID(ctx context.Context) (string, error) {
	keyword := strings.ToLower(s.productKeyword)

	var matches []string
	var pageToken *string
	for {
		out, err := s.catalog.SearchProductsAsAdmin(ctx, &servicecatalog.SearchProductsAsAdminInput{
			Filters: map[string][]string{
				string(sctypes.ProductViewFilterByFullTextSearch): {s.productKeyword},
			},
			PageToken: pageToken,
		})
		if err != nil {
			return "", fmt.Errorf("failed to search products: %w", err)
		}

		for _, detail := range out.ProductViewDetails {
			summary := detail.ProductViewSummary
			if summary == nil {
				continue
			}
			if strings.Contains(strings.ToLower(awsv2.ToString(summary.Name)), keyword) {
				matches = append(matches, awsv2.ToString(summary.ProductId))
			}
		}

		if out.NextPageToken == nil {
			break
		}
		pageToken = out.NextPageToken
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no Service Catalog product matches keyword %q", s.productKeyword)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("multiple Service Catalog products match keyword %q: %v", s.productKeyword, matches)
	}
}

// activeArtifactID returns the first active provisioning artifact of the
// product.
func (s *Service) activeArtifactID(ctx context.Context, productID string) (string, error) {
	out, err := s.catalog.DescribeProductAsAdmin(ctx, &servicecatalog.DescribeProductAsAdminInput{
		Id: awsv2.String(productID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe product %s: %w", productID, err)
	}

	for _, summary := range out.ProvisioningArtifactSummaries {
		if summary.Id == nil {
			continue
		}
		artifact, err := s.catalog.DescribeProvisioningArtifact(ctx, &servicecatalog.DescribeProvisioningArtifactInput{
			ProductId:              awsv2.String(productID),
			ProvisioningArtifactId: summary.Id,
		})
		if err != nil {
			return "", fmt.Errorf("failed to describe provisioning artifact %s: %w", awsv2.ToString(summary.Id), err)
		}
		if detail := artifact.ProvisioningArtifactDetail; detail != nil && awsv2.ToBool(detail.Active) {
			return awsv2.ToString(summary.Id), nil
		}
	}

	return "", fmt.Errorf("no active provisioning artifact for product %s", productID)
}

// provisionedProductIDs returns the AVAILABLE provisioned products
// associated with the account.
func (s *Service) provisionedProductIDs(ctx context.Context, accountID string) ([]string, error) {
	var ids []string
	var pageToken *string
	for {
		out, err := s.catalog.SearchProvisionedProducts(ctx, &servicecatalog.SearchProvisionedProductsInput{
			AccessLevelFilter: &sctypes.AccessLevelFilter{
				Key:   sctypes.AccessLevelFilterKeyAccount,
				Value: awsv2.String("self"),
			},
			Filters: map[string][]string{
				string(sctypes.ProvisionedProductViewFilterBySearchQuery): {accountID},
			},
			PageToken: pageToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search provisioned products: %w", err)
		}

		for _, product := range out.ProvisionedProducts {
			if product.Status == sctypes.ProvisionedProductStatusAvailable && product.Id != nil {
				ids = append(ids, awsv2.ToString(product.Id))
			}
		}

		if out.NextPageToken == nil {
			break
		}
		pageToken = out.NextPageToken
	}
	return ids, nil
}

func recordFromDetail(detail *sctypes.RecordDetail) *Record {
	return &Record{
		ID:                   awsv2.ToString(detail.RecordId),
		ProvisionedProductID: awsv2.ToString(detail.ProvisionedProductId),
		Status:               detail.Status,
	}
}

func recordErrors(detail *sctypes.RecordDetail) string {
	if len(detail.RecordErrors) == 0 {
		return "no error details reported"
	}
	parts := make([]string, 0, len(detail.RecordErrors))
	for _, recordErr := range detail.RecordErrors {
		parts = append(parts, fmt.Sprintf("%s: %s", awsv2.ToString(recordErr.Code), awsv2.ToString(recordErr.Description)))
	}
	return strings.Join(parts, "; ")
}
