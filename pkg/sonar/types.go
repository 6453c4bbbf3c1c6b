package sonar

// OwnerKind classifies the polymorphic "inventoryitemable" reference on an
// inventory item. Only an Address owner triggers the address lookup stage.
type OwnerKind int

const (
	OwnerNone OwnerKind = iota
	OwnerAddress
	OwnerOther
)

// OwnerRef is the typed form of Sonar's inventoryitemable reference. The
// raw __typename string is kept for reporting; the Kind drives control flow.
type OwnerRef struct {
	Kind     OwnerKind
	ID       string
	TypeName string
}

// AccountService is the account-service→account path returned inline on an
// inventory item when the device is attached to a subscriber service.
type AccountService struct {
	AccountID     string
	AccountName   *string
	AccountType   *string
	AccountStatus *string
	ServiceName   *string
}

// InventoryItem is the result of the inventory lookup (query 1). Every
// field except ID is independently nullable.
type InventoryItem struct {
	ID            string
	Latitude      *float64
	Longitude     *float64
	Model         *string
	Manufacturer  *string
	Status        *string
	OverallStatus *string
	Service       *AccountService
	Owner         OwnerRef
}

// HasCoordinates reports whether the item carries its own lat/long.
func (i *InventoryItem) HasCoordinates() bool {
	return i != nil && i.Latitude != nil && i.Longitude != nil
}

// Address is the result of the address lookup (query 2). AccountID is set
// only when the address's "addressable" reference is an Account.
type Address struct {
	ID          string
	Line1       *string
	Line2       *string
	City        *string
	Subdivision *string
	Zip         *string
	Latitude    *float64
	Longitude   *float64
	AccountID   *string
}

// Account is the result of the customer lookup (query 3).
type Account struct {
	ID     string
	Name   *string
	Type   *string
	Status *string
}
