// Package zhmc is a client for the partition-related parts of the HMC Web
// Services API of IBM Z and LinuxONE machines in DPM mode.
//
// A Client wraps a Session. Managers (CpcManager, PartitionManager) list,
// find and create resources in their scope; resource handles (Cpc,
// Partition) hold properties and expose lifecycle operations. All I/O goes
// through the Session, and errors of the HTTP layer are returned unchanged.
package zhmc

import "context"

// Client is the entry point to the resources of one HMC.
type Client struct {
	session Session
}

// NewClient returns a Client that issues all requests through session.
func NewClient(session Session) *Client {
	return &Client{session: session}
}

// Session returns the session the client was created with.
func (c *Client) Session() Session { return c.session }

// Cpcs returns the manager for the CPCs managed by the HMC.
func (c *Client) Cpcs() *CpcManager {
	return &CpcManager{base: baseManager{
		session:    c.session,
		listURI:    "/api/cpcs",
		listKey:    "cpcs",
		queryProps: []string{"name"},
	}}
}

// QueryAPIVersion returns the HMC and API version information.
func (c *Client) QueryAPIVersion(ctx context.Context) (map[string]any, error) {
	return c.session.Get(ctx, "/api/version")
}
