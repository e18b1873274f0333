package domain

import (
	"fmt"
	"time"

	pkgdomain "didhub/pkg/domain"
)

// VerificationMethod is a signing capability attached to an identity document.
type VerificationMethod struct {
	ID                  string `json:"id"`
	Type                string `json:"type"`
	Controller          string `json:"controller"`
	BlockchainAccountID string `json:"blockchainAccountId,omitempty"`
}

// Service is an optional endpoint embedded in the identity document. Only
// off-chain augmentations contribute services.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// IdentityDocument is the resolved view of an identity. Ownership and delegate
// facts come from the ledger; an off-chain augmentation may only add
// descriptive fields, never override them.
type IdentityDocument struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	Controller         string               `json:"controller"`
	AlsoKnownAs        []string             `json:"alsoKnownAs,omitempty"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []string             `json:"authentication"`
	Service            []Service            `json:"service,omitempty"`
	// VersionID mirrors the ownership record's sequence number so callers can
	// detect staleness between two resolves.
	VersionID string `json:"versionId"`
	Updated   string `json:"updated,omitempty"`
}

// DocumentAugmentation is the off-chain portion of an identity document,
// stored as a content object. Fields that would shadow on-chain facts are
// deliberately absent from the merge in ApplyAugmentation.
type DocumentAugmentation struct {
	ID          string    `json:"id,omitempty"`
	Controller  string    `json:"controller,omitempty"`
	AlsoKnownAs []string  `json:"alsoKnownAs,omitempty"`
	Service     []Service `json:"service,omitempty"`
	Updated     string    `json:"updated,omitempty"`
}

const didContext = "https://www.w3.org/ns/did/v1"

// BuildIdentityDocument assembles the canonical document from an ownership
// record. Delegates past expiry or revoked are excluded; active sigAuth-style
// roles land in authentication.
func BuildIdentityDocument(rec OwnershipRecord, now time.Time) IdentityDocument {
	did := rec.Identity.String()
	doc := IdentityDocument{
		Context:    []string{didContext},
		ID:         did,
		Controller: did,
		VerificationMethod: []VerificationMethod{{
			ID:                  did + "#controller",
			Type:                "EcdsaSecp256k1RecoveryMethod2020",
			Controller:          did,
			BlockchainAccountID: accountID(rec),
		}},
		Authentication: []string{did + "#controller"},
		VersionID:      fmt.Sprintf("%d", rec.Sequence),
	}
	for i, d := range rec.Delegates {
		if !d.ActiveAt(now) {
			continue
		}
		vmID := fmt.Sprintf("%s#delegate-%d", did, i+1)
		doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{
			ID:                  vmID,
			Type:                "EcdsaSecp256k1RecoveryMethod2020",
			Controller:          did,
			BlockchainAccountID: fmt.Sprintf("eip155:%s:%s", rec.Identity.Network(), d.Key.Hex()),
		})
		if d.Role == RoleAuthenticator {
			doc.Authentication = append(doc.Authentication, vmID)
		}
	}
	return doc
}

// RoleAuthenticator marks delegates that may authenticate as the identity.
const RoleAuthenticator = "sigAuth"

// ApplyAugmentation merges off-chain descriptive fields into a ledger-derived
// document. The ledger is authoritative: id, controller, verification methods
// and authentication references from the augmentation are ignored.
func ApplyAugmentation(doc IdentityDocument, aug DocumentAugmentation) IdentityDocument {
	doc.AlsoKnownAs = append(doc.AlsoKnownAs, aug.AlsoKnownAs...)
	doc.Service = append(doc.Service, aug.Service...)
	if aug.Updated != "" {
		doc.Updated = aug.Updated
	}
	return doc
}

func accountID(rec OwnershipRecord) string {
	return fmt.Sprintf("eip155:%s:%s", rec.Identity.Network(), rec.Owner.Hex())
}

// ProfileRecord is the application payload associated 1:1 with an identity.
// It is stored as a content object; the discovery registry and application
// state reference it by address only.
type ProfileRecord struct {
	DID             pkgdomain.DID     `json:"did"`
	DocumentAddress pkgdomain.Address `json:"documentAddress,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}
