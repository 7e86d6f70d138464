package services

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// PropertyLifecycle requests lifecycle transitions on the property aggregate
type PropertyLifecycle interface {
	CompleteTransaction(ctx context.Context, propertyID uint, listingStatus, requestStatus string) error
}

type PropertyClient struct {
	client internalClient
}

func NewPropertyClient(baseURL, apiKey string, timeout time.Duration) *PropertyClient {
	return &PropertyClient{client: newInternalClient("property-service", baseURL, apiKey, timeout)}
}

type completeTransactionRequest struct {
	ListingStatus string `json:"listingStatus"`
	RequestStatus string `json:"requestStatus"`
}

// CompleteTransaction marks the property as sold or rented. The call is idempotent on the property side.
func (c *PropertyClient) CompleteTransaction(ctx context.Context, propertyID uint, listingStatus, requestStatus string) error {
	path := fmt.Sprintf("/internal/properties/%d/complete-transaction", propertyID)
	return c.client.do(ctx, http.MethodPost, path, completeTransactionRequest{
		ListingStatus: listingStatus,
		RequestStatus: requestStatus,
	}, nil)
}
