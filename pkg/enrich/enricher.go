package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/avative-pat/FiberMonitorMap/pkg/models"
	"github.com/avative-pat/FiberMonitorMap/pkg/sonar"
)

const defaultLookupTimeout = 15 * time.Second

// Enricher annotates raw alarms with subscriber and location context from
// Sonar. Enrichment is strictly additive: raw alarm fields are never
// modified, and a failed lookup chain degrades the alarm to partial or raw
// data rather than dropping it.
type Enricher struct {
	lookups       sonar.LookupClient
	concurrency   int
	lookupTimeout time.Duration
	now           func() time.Time
}

// NewEnricher creates a new enricher. Lookups for distinct alarms run in
// parallel, bounded by concurrency.
func NewEnricher(lookups sonar.LookupClient, concurrency int, lookupTimeout time.Duration) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}

	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}

	return &Enricher{
		lookups:       lookups,
		concurrency:   concurrency,
		lookupTimeout: lookupTimeout,
		now:           time.Now,
	}
}

// EnrichAll enriches every alarm in the slice, preserving input order.
// Each alarm's lookup chain is independent; one alarm's failure never
// affects another's result. The returned error is non-nil only for an
// authentication failure against Sonar, which is global rather than
// per-alarm: the snapshot is still returned (degraded to raw data) so
// the cycle can cache it, and the caller surfaces the error in status.
func (e *Enricher) EnrichAll(ctx context.Context, raw []models.RawAlarm) ([]models.EnrichedAlarm, error) {
	enriched := make([]models.EnrichedAlarm, len(raw))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range raw {
		i := i
		g.Go(func() error {
			var err error
			enriched[i], err = e.Enrich(gctx, &raw[i])
			return err
		})
	}

	// An auth failure cancels the in-flight lookups; every other failure
	// is absorbed into its alarm's partial result.
	return enriched, g.Wait()
}

// Enrich runs the three-stage conditional lookup chain for one alarm and
// merges the results deterministically. The error is non-nil only for an
// auth failure; the partially enriched alarm is always valid.
func (e *Enricher) Enrich(ctx context.Context, raw *models.RawAlarm) (models.EnrichedAlarm, error) {
	out := e.base(raw)

	ref, ok := ExtractInventoryRef(raw)
	if !ok {
		logrus.Debugf("Alarm %s has no inventory reference, passing through unenriched", raw.SequenceNum)
		return out, nil
	}

	out.OntID = ref.OntID

	itemID, err := sonar.ParseItemID(ref.ItemID)
	if err != nil {
		logrus.Warnf("Alarm %s carries malformed inventory reference %q: %v", raw.SequenceNum, ref.OntID, err)
		return out, nil
	}

	// Stage 1: inventory lookup.
	item, err := e.lookupInventory(ctx, raw.SequenceNum, itemID)
	if item == nil {
		return out, authOnly(err)
	}

	applyInventory(&out, item)

	// Stage 2: address lookup. Skipped when the item is not owned by an
	// address entity, or when the item already told us everything an
	// address could (its own coordinates plus a customer reference).
	var addr *sonar.Address
	var addrErr error
	if item.Owner.Kind == sonar.OwnerAddress && !(item.HasCoordinates() && item.Service != nil) {
		addr, addrErr = e.lookupAddress(ctx, raw.SequenceNum, item.Owner.ID)
	}

	applyCoordinates(&out, item, addr)
	applyAddress(&out, addr)

	// Stage 3: customer lookup. Only when stage 1 gave no account and the
	// address chain produced an account reference.
	var acctErr error
	if item.Service == nil && addr != nil && addr.AccountID != nil {
		var acct *sonar.Account
		acct, acctErr = e.lookupAccount(ctx, raw.SequenceNum, *addr.AccountID)
		if acct != nil {
			out.AccountID = &acct.ID
			out.AccountName = acct.Name
			out.AccountType = acct.Type
			out.AccountStatus = acct.Status
		}
	}

	out.IsEnriched = out.HasCoordinates()

	if err := authOnly(addrErr); err != nil {
		return out, err
	}

	return out, authOnly(acctErr)
}

// authOnly filters a lookup error down to the auth sentinel: everything
// else was already logged and absorbed as a not-found.
func authOnly(err error) error {
	if errors.Is(err, sonar.ErrAuthFailed) {
		return err
	}

	return nil
}

// base copies the raw alarm and fills in the locally derived fields.
func (e *Enricher) base(raw *models.RawAlarm) models.EnrichedAlarm {
	out := models.EnrichedAlarm{RawAlarm: *raw}
	out.PonPort = ExtractPonPort(raw)
	out.IsServiceImpacting = raw.IsServiceAffecting()
	out.ReceiveTimeString = time.UnixMilli(raw.ReceiveTime).UTC().Format(time.RFC3339)
	out.DeviceTimeString = time.UnixMilli(raw.DeviceTime).UTC().Format(time.RFC3339)
	out.LastEnrichmentTime = e.now().UTC().Format(time.RFC3339)
	out.EnrichmentAttempts = 1

	return out
}

func (e *Enricher) lookupInventory(ctx context.Context, seq string, itemID int64) (*sonar.InventoryItem, error) {
	lctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	item, err := e.lookups.GetInventoryItem(lctx, itemID)
	if err != nil {
		// A timed-out or failed lookup is treated as not-found for this
		// alarm; the cycle continues.
		logrus.Warnf("Inventory lookup failed for alarm %s (item %d): %v", seq, itemID, err)
		return nil, err
	}

	return item, nil
}

func (e *Enricher) lookupAddress(ctx context.Context, seq, ownerID string) (*sonar.Address, error) {
	addressID, err := sonar.ParseItemID(ownerID)
	if err != nil {
		logrus.Warnf("Alarm %s owner reference has malformed address id %q: %v", seq, ownerID, err)
		return nil, nil
	}

	lctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	addr, err := e.lookups.GetAddress(lctx, addressID)
	if err != nil {
		logrus.Warnf("Address lookup failed for alarm %s (address %d): %v", seq, addressID, err)
		return nil, err
	}

	return addr, nil
}

func (e *Enricher) lookupAccount(ctx context.Context, seq, accountRef string) (*sonar.Account, error) {
	accountID, err := sonar.ParseItemID(accountRef)
	if err != nil {
		logrus.Warnf("Alarm %s address has malformed account id %q: %v", seq, accountRef, err)
		return nil, nil
	}

	lctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	acct, err := e.lookups.GetAccount(lctx, accountID)
	if err != nil {
		logrus.Warnf("Customer lookup failed for alarm %s (account %d): %v", seq, accountID, err)
		return nil, err
	}

	return acct, nil
}

func applyInventory(out *models.EnrichedAlarm, item *sonar.InventoryItem) {
	out.InventoryModel = item.Model
	out.Manufacturer = item.Manufacturer
	out.InventoryStatus = item.Status
	out.OverallStatus = item.OverallStatus

	if item.Owner.Kind != sonar.OwnerNone {
		ownerID := item.Owner.ID
		ownerType := item.Owner.TypeName
		out.OwnerID = &ownerID
		out.OwnerType = &ownerType
	}

	if svc := item.Service; svc != nil {
		accountID := svc.AccountID
		out.AccountID = &accountID
		out.AccountName = svc.AccountName
		out.AccountType = svc.AccountType
		out.AccountStatus = svc.AccountStatus
		out.ServiceName = svc.ServiceName
	}
}

// applyCoordinates merges location with a fixed priority: the inventory
// item's own coordinates win over the address lookup's.
func applyCoordinates(out *models.EnrichedAlarm, item *sonar.InventoryItem, addr *sonar.Address) {
	switch {
	case item.HasCoordinates():
		out.Latitude = item.Latitude
		out.Longitude = item.Longitude
	case addr != nil && addr.Latitude != nil && addr.Longitude != nil:
		out.Latitude = addr.Latitude
		out.Longitude = addr.Longitude
	}
}

func applyAddress(out *models.EnrichedAlarm, addr *sonar.Address) {
	if addr == nil {
		return
	}

	out.AddressLine1 = addr.Line1
	out.AddressLine2 = addr.Line2
	out.AddressCity = addr.City
	out.AddressSubdivision = addr.Subdivision
	out.AddressZip = addr.Zip
	out.FullAddress = FullAddress(addr.Line1, addr.Line2, addr.City, addr.Subdivision, addr.Zip)
}
