package domain

import "strings"

const (
	PublicPrefix = "public"
	AssetExt     = "png"

	metaInteractionID    = "interactionId"
	metaUserID           = "userId"
	metaRequestID        = "promptId"
	metaInteractionToken = "interactionToken"
)

// AssetKey derives the object key from the user and request ids alone.
func AssetKey(userID, requestID string) string {
	return PublicPrefix + "/" + userID + "/" + requestID + "." + AssetExt
}

// AssetMetadata is attached to every generated object so the delivery stage
// can address the originating conversation without reading the request table.
type AssetMetadata struct {
	InteractionID    string
	UserID           string
	RequestID        string
	InteractionToken string
}

func (m AssetMetadata) Map() map[string]string {
	return map[string]string{
		metaInteractionID:    m.InteractionID,
		metaUserID:           m.UserID,
		metaRequestID:        m.RequestID,
		metaInteractionToken: m.InteractionToken,
	}
}

// AssetMetadataFromMap reads metadata as returned by the object store, which
// lower-cases user metadata keys.
func AssetMetadataFromMap(meta map[string]string) AssetMetadata {
	lookup := func(key string) string {
		if v, ok := meta[key]; ok {
			return v
		}
		for k, v := range meta {
			if strings.EqualFold(k, key) {
				return v
			}
		}
		return ""
	}
	return AssetMetadata{
		InteractionID:    lookup(metaInteractionID),
		UserID:           lookup(metaUserID),
		RequestID:        lookup(metaRequestID),
		InteractionToken: lookup(metaInteractionToken),
	}
}
