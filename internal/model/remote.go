package model

// RemoteItem is one entry returned by the remote knowledge-source API.
type RemoteItem struct {
	Name     string             `json:"name"`
	Metadata RemoteItemMetadata `json:"metadata"`
}

type RemoteItemMetadata struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}
