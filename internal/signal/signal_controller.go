package signal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"
	"github.com/nextgenhealthcare/signaling-server/pkg/protocol"
	"github.com/nextgenhealthcare/signaling-server/pkg/wsutils"
	"go.uber.org/fx"
)

type signalController struct {
	logger   *slog.Logger
	registry *Registry
	notifier *Notifier
	metrics  *Metrics
	upgrader websocket.Upgrader
}

type roomsUpdatedEvent struct {
	Type string `json:"type"`
}

type roomListResponse struct {
	Rooms []RoomInfo `json:"rooms"`
}

// videoCall upgrades the request and hands the connection to a gateway for
// the rest of its life.
func (ctrl *signalController) videoCall(ctx echo.Context) error {
	conn, err := ctrl.upgrader.Upgrade(ctx.Response().Writer, ctx.Request(), nil)
	if err != nil {
		ctrl.logger.Error(fmt.Sprintf("unable to upgrade request %+v", ctx.Request()))
		return err
	}

	w := wsutils.NewThreadSafeWriter(conn)
	defer w.Close()

	gateway := NewGateway(NewGatewayParams{
		Logger:   ctrl.logger,
		Rooms:    ctrl.registry,
		Notifier: ctrl.notifier,
		Metrics:  ctrl.metrics,
		Conn:     w,
	})
	gateway.Serve()
	return nil
}

// roomEvents registers an observer websocket that gets a rooms-updated push
// whenever room membership changes anywhere in the process.
func (ctrl *signalController) roomEvents(ctx echo.Context) error {
	conn, err := ctrl.upgrader.Upgrade(ctx.Response().Writer, ctx.Request(), nil)
	if err != nil {
		ctrl.logger.Error(fmt.Sprintf("unable to upgrade request %+v", ctx.Request()))
		return err
	}

	w := wsutils.NewThreadSafeWriter(conn)
	defer w.Close()

	id := uuid.NewString()
	ctrl.notifier.Listen(id, w)
	defer ctrl.notifier.Stop(id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (ctrl *signalController) roomList(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, roomListResponse{
		Rooms: ctrl.registry.List(),
	})
}

func (ctrl *signalController) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (ctrl *signalController) Resolve(router protocol.HttpRouter) error {
	go ctrl.notifier.OnUpdateRooms(context.Background(), func(w *wsutils.ThreadSafeWriter) {
		if err := w.WriteJSON(&roomsUpdatedEvent{Type: "rooms-updated"}); err != nil {
			ctrl.logger.Debug("unable to push rooms update", slog.String("err", err.Error()))
		}
	})

	router.GET("/ws/video", ctrl.videoCall)
	router.GET("/ws/rooms", ctrl.roomEvents)
	router.GET("/api/rooms", ctrl.roomList)
	router.GET("/api/health", ctrl.health)
	router.GET("/metrics", echo.WrapHandler(ctrl.metrics.Handler()))
	return nil
}

var _ protocol.HttpResolvable = (*signalController)(nil)

type newSignalController_Params struct {
	fx.In

	Logger   *slog.Logger
	Registry *Registry
	Notifier *Notifier
	Metrics  *Metrics
}

func NewSignalController(params newSignalController_Params) *signalController {
	return &signalController{
		logger:   params.Logger,
		registry: params.Registry,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}
