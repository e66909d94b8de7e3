package api

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TokenResponse represents the OAuth token response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Meta is the metadata block present on every Falcon response
type Meta struct {
	QueryTime  float64     `json:"query_time"`
	TraceID    string      `json:"trace_id"`
	PoweredBy  string      `json:"powered_by,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes where a listing page sits in the full result set
type Pagination struct {
	Offset    Cursor `json:"offset"`
	Limit     int    `json:"limit"`
	Total     int    `json:"total"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// Cursor holds pagination.offset, which is a number on offset listings and an opaque string on scroll listings.
type Cursor string

// UnmarshalJSON accepts a number, a string or null.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*c = ""
	case float64:
		*c = Cursor(strconv.FormatInt(int64(val), 10))
	case string:
		*c = Cursor(val)
	default:
		return fmt.Errorf("Cursor: unexpected type %T", v)
	}
	return nil
}

// Numeric reports whether the cursor is a plain integer offset.
func (c Cursor) Numeric() bool {
	_, err := strconv.Atoi(string(c))
	return err == nil
}

// ErrorEntry is one element of a response's errors array
type ErrorEntry struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// QueryResponse is returned by the queries endpoints, which list ids only
type QueryResponse struct {
	Meta      Meta         `json:"meta"`
	Resources []string     `json:"resources"`
	Errors    []ErrorEntry `json:"errors"`
}

// Device represents a host in the API response
type Device struct {
	DeviceID         string   `json:"device_id"`
	CID              string   `json:"cid"`
	Hostname         string   `json:"hostname"`
	LocalIP          string   `json:"local_ip"`
	ExternalIP       string   `json:"external_ip"`
	MACAddress       string   `json:"mac_address"`
	PlatformName     string   `json:"platform_name"`
	OSVersion        string   `json:"os_version"`
	AgentVersion     string   `json:"agent_version"`
	Status           string   `json:"status"`
	ProductTypeDesc  string   `json:"product_type_desc"`
	FirstSeen        string   `json:"first_seen"`
	LastSeen         string   `json:"last_seen"`
	Tags             []string `json:"tags"`
	ReducedFunctMode string   `json:"reduced_functionality_mode"`
}

// DevicesResponse represents the device entities response
type DevicesResponse struct {
	Meta      Meta         `json:"meta"`
	Resources []Device     `json:"resources"`
	Errors    []ErrorEntry `json:"errors"`
}

// PutFile is a file uploaded to the RTR put-file library
type PutFile struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	FileType          string `json:"file_type"`
	Size              int64  `json:"size"`
	SHA256            string `json:"sha256"`
	CreatedBy         string `json:"created_by"`
	CreatedTimestamp  string `json:"created_timestamp"`
	ModifiedBy        string `json:"modified_by"`
	ModifiedTimestamp string `json:"modified_timestamp"`
}

// PutFilesResponse represents the put-files entities response
type PutFilesResponse struct {
	Meta      Meta         `json:"meta"`
	Resources []PutFile    `json:"resources"`
	Errors    []ErrorEntry `json:"errors"`
}

// Script is a custom RTR script
type Script struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Content           string   `json:"content"`
	PermissionType    string   `json:"permission_type"`
	Platform          []string `json:"platform"`
	Size              int64    `json:"size"`
	SHA256            string   `json:"sha256"`
	CreatedBy         string   `json:"created_by"`
	CreatedTimestamp  string   `json:"created_timestamp"`
	ModifiedBy        string   `json:"modified_by"`
	ModifiedTimestamp string   `json:"modified_timestamp"`
}

// ScriptsResponse represents the scripts entities response
type ScriptsResponse struct {
	Meta      Meta         `json:"meta"`
	Resources []Script     `json:"resources"`
	Errors    []ErrorEntry `json:"errors"`
}

// SessionResult is the per-host outcome of a batch init or command
type SessionResult struct {
	SessionID   string       `json:"session_id"`
	TaskID      string       `json:"task_id"`
	AID         string       `json:"aid"`
	Complete    bool         `json:"complete"`
	Offline     bool         `json:"offline_queued"`
	BaseCommand string       `json:"base_command"`
	Stdout      string       `json:"stdout"`
	Stderr      string       `json:"stderr"`
	QueryTime   float64      `json:"query_time"`
	Errors      []ErrorEntry `json:"errors"`
}

// BatchInitResponse represents the batch-init-session response
type BatchInitResponse struct {
	Meta      Meta                     `json:"meta"`
	BatchID   string                   `json:"batch_id"`
	Resources map[string]SessionResult `json:"resources"`
	Errors    []ErrorEntry             `json:"errors"`
}

// BatchCommandResponse represents the response of all three batch command endpoints
type BatchCommandResponse struct {
	Meta     Meta `json:"meta"`
	Combined struct {
		Resources map[string]SessionResult `json:"resources"`
	} `json:"combined"`
	Errors []ErrorEntry `json:"errors"`
}

// SessionCommandResponse represents the single-session admin command response
type SessionCommandResponse struct {
	Meta      Meta            `json:"meta"`
	Resources []SessionResult `json:"resources"`
	Errors    []ErrorEntry    `json:"errors"`
}

// Indicator is a custom IOC as submitted to and returned by the indicators endpoint
type Indicator struct {
	ID             string `json:"id,omitempty"`
	Type           string `json:"type"`
	Value          string `json:"value"`
	Policy         string `json:"policy"`
	ShareLevel     string `json:"share_level"`
	ExpirationDays int    `json:"expiration_days"`
	Source         string `json:"source"`
	Description    string `json:"description"`
}

// IndicatorsResponse represents the indicators entities response
type IndicatorsResponse struct {
	Meta      Meta         `json:"meta"`
	Resources []Indicator  `json:"resources"`
	Errors    []ErrorEntry `json:"errors"`
}
