package sonar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/machinebox/graphql"
	"github.com/sirupsen/logrus"

	"github.com/avative-pat/FiberMonitorMap/pkg/config"
)

// ErrAuthFailed is returned when Sonar rejects the configured bearer
// token. Surfaced distinctly in poll status so an expired token is
// visible to operators instead of looking like a string of not-founds.
var ErrAuthFailed = errors.New("sonar authentication failed")

// Sonar's addressable/inventoryitemable __typename values the lookup chain
// cares about.
const (
	typeNameAddress = "Address"
	typeNameAccount = "Account"
)

const inventoryItemQuery = `
query GetOntLocation($ontId: Int64Bit!) {
    inventory_items(id: $ontId) {
        entities {
            id
            latitude
            longitude
            account_service_id
            account_service {
                id
                name_override
                account {
                    id
                    name
                    account_type {
                        name
                    }
                    account_status {
                        name
                    }
                }
                service {
                    id
                    name
                }
            }
            inventory_model {
                model_name
                manufacturer {
                    name
                }
            }
            inventoryitemable {
                id
                __typename
            }
            status
            overall_status
        }
    }
}`

const addressQuery = `
query GetAddressDetails($addressId: Int64Bit!) {
    addresses(id: $addressId) {
        entities {
            id
            line1
            line2
            city
            subdivision
            zip
            latitude
            longitude
            addressable {
                id
                __typename
            }
        }
    }
}`

const accountQuery = `
query GetCustomerDetails($accountId: Int64Bit!) {
    accounts(id: $accountId) {
        entities {
            id
            name
            account_type {
                name
            }
            account_status {
                name
            }
        }
    }
}`

// LookupClient is the enrichment lookup contract consumed by the
// enrichment engine. A nil result with a nil error means not-found.
type LookupClient interface {
	GetInventoryItem(ctx context.Context, itemID int64) (*InventoryItem, error)
	GetAddress(ctx context.Context, addressID int64) (*Address, error)
	GetAccount(ctx context.Context, accountID int64) (*Account, error)
}

// Client is a Sonar GraphQL API client.
type Client struct {
	gql   *graphql.Client
	token string
}

var _ LookupClient = (*Client)(nil)

// NewClient creates a new Sonar client
func NewClient(cfg *config.Sonar) *Client {
	httpClient := &http.Client{
		Timeout:   cfg.Timeout(),
		Transport: authCheckTransport{base: http.DefaultTransport},
	}

	return &Client{
		gql:   graphql.NewClient(cfg.URL, graphql.WithHTTPClient(httpClient)),
		token: cfg.Token,
	}
}

// authCheckTransport turns 401/403 responses into ErrAuthFailed before the
// GraphQL layer tries to decode them.
type authCheckTransport struct {
	base http.RoundTripper
}

func (t authCheckTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}

	return resp, nil
}

// namedRef is the {name} sub-object Sonar uses for types and statuses.
type namedRef struct {
	Name *string `json:"name"`
}

// typedRef is a polymorphic entity reference carrying its concrete type.
type typedRef struct {
	ID       *string `json:"id"`
	TypeName *string `json:"__typename"`
}

type inventoryItemResponse struct {
	InventoryItems struct {
		Entities []struct {
			ID             string    `json:"id"`
			Latitude       *float64  `json:"latitude"`
			Longitude      *float64  `json:"longitude"`
			AccountService *struct {
				ID           *string `json:"id"`
				NameOverride *string `json:"name_override"`
				Account      *struct {
					ID            string   `json:"id"`
					Name          *string  `json:"name"`
					AccountType   namedRef `json:"account_type"`
					AccountStatus namedRef `json:"account_status"`
				} `json:"account"`
				Service *struct {
					ID   *string `json:"id"`
					Name *string `json:"name"`
				} `json:"service"`
			} `json:"account_service"`
			InventoryModel *struct {
				ModelName    *string  `json:"model_name"`
				Manufacturer namedRef `json:"manufacturer"`
			} `json:"inventory_model"`
			Inventoryitemable *typedRef `json:"inventoryitemable"`
			Status            *string   `json:"status"`
			OverallStatus     *string   `json:"overall_status"`
		} `json:"entities"`
	} `json:"inventory_items"`
}

// GetInventoryItem performs the inventory lookup (query 1). Returns nil
// when Sonar has no entity for the id.
func (c *Client) GetInventoryItem(ctx context.Context, itemID int64) (*InventoryItem, error) {
	req := c.newRequest(inventoryItemQuery)
	req.Var("ontId", itemID)

	var resp inventoryItemResponse
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("inventory item query failed for %d: %w", itemID, err)
	}

	entities := resp.InventoryItems.Entities
	if len(entities) == 0 {
		logrus.Debugf("No inventory entity found in Sonar for item %d", itemID)
		return nil, nil
	}

	raw := entities[0]
	item := &InventoryItem{
		ID:            raw.ID,
		Latitude:      raw.Latitude,
		Longitude:     raw.Longitude,
		Status:        raw.Status,
		OverallStatus: raw.OverallStatus,
		Owner:         ownerRef(raw.Inventoryitemable),
	}

	if raw.InventoryModel != nil {
		item.Model = raw.InventoryModel.ModelName
		item.Manufacturer = raw.InventoryModel.Manufacturer.Name
	}

	if svc := raw.AccountService; svc != nil && svc.Account != nil {
		item.Service = &AccountService{
			AccountID:     svc.Account.ID,
			AccountName:   svc.Account.Name,
			AccountType:   svc.Account.AccountType.Name,
			AccountStatus: svc.Account.AccountStatus.Name,
		}
		if svc.Service != nil {
			item.Service.ServiceName = svc.Service.Name
		}
	}

	return item, nil
}

type addressResponse struct {
	Addresses struct {
		Entities []struct {
			ID          string    `json:"id"`
			Line1       *string   `json:"line1"`
			Line2       *string   `json:"line2"`
			City        *string   `json:"city"`
			Subdivision *string   `json:"subdivision"`
			Zip         *string   `json:"zip"`
			Latitude    *float64  `json:"latitude"`
			Longitude   *float64  `json:"longitude"`
			Addressable *typedRef `json:"addressable"`
		} `json:"entities"`
	} `json:"addresses"`
}

// GetAddress performs the address lookup (query 2). The addressable
// reference is narrowed at this boundary: only an Account ref survives
// into the result.
func (c *Client) GetAddress(ctx context.Context, addressID int64) (*Address, error) {
	req := c.newRequest(addressQuery)
	req.Var("addressId", addressID)

	var resp addressResponse
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("address query failed for %d: %w", addressID, err)
	}

	entities := resp.Addresses.Entities
	if len(entities) == 0 {
		logrus.Debugf("No address entity found in Sonar for address %d", addressID)
		return nil, nil
	}

	raw := entities[0]
	addr := &Address{
		ID:          raw.ID,
		Line1:       raw.Line1,
		Line2:       raw.Line2,
		City:        raw.City,
		Subdivision: raw.Subdivision,
		Zip:         raw.Zip,
		Latitude:    raw.Latitude,
		Longitude:   raw.Longitude,
	}

	if ref := raw.Addressable; ref != nil && ref.TypeName != nil && *ref.TypeName == typeNameAccount && ref.ID != nil {
		addr.AccountID = ref.ID
	}

	return addr, nil
}

type accountResponse struct {
	Accounts struct {
		Entities []struct {
			ID            string   `json:"id"`
			Name          *string  `json:"name"`
			AccountType   namedRef `json:"account_type"`
			AccountStatus namedRef `json:"account_status"`
		} `json:"entities"`
	} `json:"accounts"`
}

// GetAccount performs the customer lookup (query 3).
func (c *Client) GetAccount(ctx context.Context, accountID int64) (*Account, error) {
	req := c.newRequest(accountQuery)
	req.Var("accountId", accountID)

	var resp accountResponse
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("account query failed for %d: %w", accountID, err)
	}

	entities := resp.Accounts.Entities
	if len(entities) == 0 {
		logrus.Debugf("No account entity found in Sonar for account %d", accountID)
		return nil, nil
	}

	raw := entities[0]

	return &Account{
		ID:     raw.ID,
		Name:   raw.Name,
		Type:   raw.AccountType.Name,
		Status: raw.AccountStatus.Name,
	}, nil
}

func (c *Client) newRequest(query string) *graphql.Request {
	req := graphql.NewRequest(query)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	return req
}

// ownerRef maps the raw polymorphic reference into the tagged variant the
// enrichment engine branches on.
func ownerRef(ref *typedRef) OwnerRef {
	if ref == nil || ref.ID == nil || ref.TypeName == nil {
		return OwnerRef{Kind: OwnerNone}
	}

	kind := OwnerOther
	if *ref.TypeName == typeNameAddress {
		kind = OwnerAddress
	}

	return OwnerRef{Kind: kind, ID: *ref.ID, TypeName: *ref.TypeName}
}

// ParseItemID converts a numeric Sonar id string to the Int64Bit form the
// GraphQL API expects.
func ParseItemID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sonar id %q: %w", id, err)
	}

	return n, nil
}
