package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"dvr/internal/api"
	"dvr/internal/conflict"
	"dvr/internal/daemon"
	"dvr/internal/logging"
	"dvr/internal/store"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server
	service   *service

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("DVR", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		service:   srv,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// OnStop registers fn to run after a Stop RPC has stopped the daemon.
// The daemon runner uses it to exit the process.
func (s *Server) OnStop(fn func()) {
	s.service.onStop = fn
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc.accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc.socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun dvr stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
	onStop func()
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	if s.onStop != nil {
		s.onStop()
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) ScheduleAdd(req ScheduleAddRequest, resp *ScheduleAddResponse) error {
	parsed, err := req.Schedule.ToRequest()
	if err != nil {
		return err
	}
	id, result, err := s.daemon.Schedule(s.ctx, parsed, req.Schedule.Force)
	if result.HasConflict {
		dto := api.FromConflict(result)
		resp.Conflict = &dto
	}
	if errors.Is(err, conflict.ErrConflict) {
		resp.Refused = true
		resp.Message = result.Message
		return nil
	}
	if err != nil {
		return err
	}
	resp.ID = id
	return nil
}

func (s *service) ScheduleList(req ScheduleListRequest, resp *ScheduleListResponse) error {
	statuses := make([]store.ScheduleStatus, 0, len(req.Statuses))
	for _, value := range req.Statuses {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			statuses = append(statuses, store.ScheduleStatus(trimmed))
		}
	}
	items, err := s.daemon.ListSchedules(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Schedules = api.FromSchedules(items)
	return nil
}

func (s *service) ScheduleShow(req ScheduleShowRequest, resp *ScheduleShowResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid schedule id %d", req.ID)
	}
	sched, err := s.daemon.GetSchedule(s.ctx, req.ID)
	if err != nil {
		return err
	}
	recs, err := s.daemon.ScheduleRecordings(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Schedule = api.FromSchedule(sched)
	resp.Recordings = api.FromRecordings(recs)
	return nil
}

func (s *service) ScheduleCancel(req ScheduleIDRequest, resp *ScheduleIDResponse) error {
	if err := s.daemon.Cancel(s.ctx, req.ID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

func (s *service) ScheduleDelete(req ScheduleIDRequest, resp *ScheduleIDResponse) error {
	if err := s.daemon.Delete(s.ctx, req.ID); err != nil {
		return err
	}
	resp.OK = true
	return nil
}

func (s *service) SchedulePadding(req SchedulePaddingRequest, resp *SchedulePaddingResponse) error {
	if err := s.daemon.UpdatePadding(s.ctx, req.ID, req.StartPaddingSec, req.EndPaddingSec); err != nil {
		return err
	}
	sched, err := s.daemon.GetSchedule(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Schedule = api.FromSchedule(sched)
	return nil
}

func (s *service) ScheduleStreamURL(req ScheduleStreamURLRequest, resp *ScheduleStreamURLResponse) error {
	woke, err := s.daemon.UpdateScheduleStreamURL(s.ctx, req.ID, req.URL)
	if err != nil {
		return err
	}
	resp.Delivered = woke
	return nil
}

func (s *service) RecordingList(_ RecordingListRequest, resp *RecordingListResponse) error {
	items, err := s.daemon.ListCompleted(s.ctx)
	if err != nil {
		return err
	}
	resp.Recordings = api.FromRecordings(items)
	return nil
}

func (s *service) RecordingActive(_ RecordingActiveRequest, resp *RecordingActiveResponse) error {
	resp.Active = s.daemon.ListActive()
	return nil
}

func (s *service) RecordingStop(req ScheduleIDRequest, resp *ScheduleIDResponse) error {
	if err := s.daemon.StopRecording(req.ID); err != nil {
		return err
	}
	resp.OK = true
	s.log().Info("recording stop requested via IPC",
		logging.Int64(logging.FieldScheduleID, req.ID),
		logging.String(logging.FieldEventType, "recording_stop"))
	return nil
}

func (s *service) RecordingDelete(req RecordingDeleteRequest, resp *RecordingDeleteResponse) error {
	freed, err := s.daemon.DeleteRecording(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.BytesFreed = freed
	return nil
}

func (s *service) RecordingThumbnail(req RecordingThumbnailRequest, resp *RecordingThumbnailResponse) error {
	data, err := s.daemon.RecordingThumbnail(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Data = data
	return nil
}

func (s *service) Conflicts(req ConflictsRequest, resp *ConflictsResponse) error {
	start, err := api.ParseTime(req.Query.Start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := api.ParseTime(req.Query.End)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	result, err := s.daemon.CheckConflicts(s.ctx, req.Query.SourceID, req.Query.ChannelID, start, end)
	if err != nil {
		return err
	}
	resp.Result = api.FromConflict(result)
	return nil
}

func (s *service) SettingsList(_ SettingsListRequest, resp *SettingsListResponse) error {
	settings, err := s.daemon.ListSettings(s.ctx)
	if err != nil {
		return err
	}
	resp.Settings = settings
	return nil
}

func (s *service) SettingGet(req SettingGetRequest, resp *SettingResponse) error {
	value, err := s.daemon.GetSetting(s.ctx, req.Key)
	if err != nil {
		return err
	}
	resp.Setting = api.Setting{Key: req.Key, Value: value}
	return nil
}

func (s *service) SettingSet(req SettingSetRequest, resp *SettingResponse) error {
	if err := s.daemon.SaveSetting(s.ctx, req.Key, req.Value); err != nil {
		return err
	}
	value, err := s.daemon.GetSetting(s.ctx, req.Key)
	if err != nil {
		return err
	}
	resp.Setting = api.Setting{Key: req.Key, Value: value}
	return nil
}

func (s *service) Cleanup(_ CleanupRequest, resp *CleanupResponse) error {
	report, err := s.daemon.RunCleanupNow(s.ctx)
	if err != nil {
		return err
	}
	resp.Report = report
	return nil
}

func (s *service) Playback(req PlaybackRequest, resp *PlaybackResponse) error {
	s.daemon.SetPlayback(req.SourceID, req.ChannelID)
	resp.Playing = strings.TrimSpace(req.SourceID) != ""
	return nil
}

func (s *service) Sources(_ SourcesRequest, resp *SourcesResponse) error {
	items, err := s.daemon.ListSources(s.ctx)
	if err != nil {
		return err
	}
	resp.Sources = api.FromSources(items)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	if err != nil {
		return err
	}
	resp.Sent = sent
	resp.Message = message
	return nil
}
