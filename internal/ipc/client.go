package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"dvr/internal/api"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start scheduling.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("DVR.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop stops the daemon and asks the process to exit.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("DVR.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("DVR.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleAdd creates a schedule. A refused conflict is reported in the response, not as an error.
func (c *Client) ScheduleAdd(req ScheduleAddRequest) (*ScheduleAddResponse, error) {
	var resp ScheduleAddResponse
	if err := c.client.Call("DVR.ScheduleAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleList lists schedules in the given statuses.
func (c *Client) ScheduleList(statuses []string) (*ScheduleListResponse, error) {
	var resp ScheduleListResponse
	if err := c.client.Call("DVR.ScheduleList", ScheduleListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleShow fetches a schedule with its recordings.
func (c *Client) ScheduleShow(id int64) (*ScheduleShowResponse, error) {
	var resp ScheduleShowResponse
	if err := c.client.Call("DVR.ScheduleShow", ScheduleShowRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleCancel cancels a schedule.
func (c *Client) ScheduleCancel(id int64) (*ScheduleIDResponse, error) {
	var resp ScheduleIDResponse
	if err := c.client.Call("DVR.ScheduleCancel", ScheduleIDRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleDelete deletes a schedule and its recordings.
func (c *Client) ScheduleDelete(id int64) (*ScheduleIDResponse, error) {
	var resp ScheduleIDResponse
	if err := c.client.Call("DVR.ScheduleDelete", ScheduleIDRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SchedulePadding changes schedule paddings.
func (c *Client) SchedulePadding(req SchedulePaddingRequest) (*SchedulePaddingResponse, error) {
	var resp SchedulePaddingResponse
	if err := c.client.Call("DVR.SchedulePadding", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleStreamURL stores a fresh stream URL for a schedule.
func (c *Client) ScheduleStreamURL(id int64, url string) (*ScheduleStreamURLResponse, error) {
	var resp ScheduleStreamURLResponse
	if err := c.client.Call("DVR.ScheduleStreamURL", ScheduleStreamURLRequest{ID: id, URL: url}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingList lists finished recordings.
func (c *Client) RecordingList() (*RecordingListResponse, error) {
	var resp RecordingListResponse
	if err := c.client.Call("DVR.RecordingList", RecordingListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingActive lists live captures.
func (c *Client) RecordingActive() (*RecordingActiveResponse, error) {
	var resp RecordingActiveResponse
	if err := c.client.Call("DVR.RecordingActive", RecordingActiveRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingStop stops the live capture of a schedule.
func (c *Client) RecordingStop(scheduleID int64) (*ScheduleIDResponse, error) {
	var resp ScheduleIDResponse
	if err := c.client.Call("DVR.RecordingStop", ScheduleIDRequest{ID: scheduleID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingDelete removes a recording and its files.
func (c *Client) RecordingDelete(id int64) (*RecordingDeleteResponse, error) {
	var resp RecordingDeleteResponse
	if err := c.client.Call("DVR.RecordingDelete", RecordingDeleteRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingThumbnail fetches thumbnail bytes.
func (c *Client) RecordingThumbnail(id int64) (*RecordingThumbnailResponse, error) {
	var resp RecordingThumbnailResponse
	if err := c.client.Call("DVR.RecordingThumbnail", RecordingThumbnailRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Conflicts checks a proposed window for conflicts.
func (c *Client) Conflicts(query api.ConflictQuery) (*ConflictsResponse, error) {
	var resp ConflictsResponse
	if err := c.client.Call("DVR.Conflicts", ConflictsRequest{Query: query}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SettingsList lists settings.
func (c *Client) SettingsList() (*SettingsListResponse, error) {
	var resp SettingsListResponse
	if err := c.client.Call("DVR.SettingsList", SettingsListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SettingGet reads one setting.
func (c *Client) SettingGet(key string) (*SettingResponse, error) {
	var resp SettingResponse
	if err := c.client.Call("DVR.SettingGet", SettingGetRequest{Key: key}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SettingSet writes one setting.
func (c *Client) SettingSet(key, value string) (*SettingResponse, error) {
	var resp SettingResponse
	if err := c.client.Call("DVR.SettingSet", SettingSetRequest{Key: key, Value: value}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cleanup runs a cleanup pass now.
func (c *Client) Cleanup() (*CleanupResponse, error) {
	var resp CleanupResponse
	if err := c.client.Call("DVR.Cleanup", CleanupRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Playback reports current playback. An empty source clears it.
func (c *Client) Playback(sourceID, channelID string) (*PlaybackResponse, error) {
	var resp PlaybackResponse
	if err := c.client.Call("DVR.Playback", PlaybackRequest{SourceID: sourceID, ChannelID: channelID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sources lists configured providers.
func (c *Client) Sources() (*SourcesResponse, error) {
	var resp SourcesResponse
	if err := c.client.Call("DVR.Sources", SourcesRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification sends a test notification.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("DVR.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
