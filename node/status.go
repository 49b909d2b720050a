package node

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andydunstall/rumor/node/broadcast"
	"github.com/andydunstall/rumor/node/status"
	"github.com/andydunstall/rumor/pkg/protocol"
	statuserr "github.com/andydunstall/rumor/pkg/status"
)

// Status exposes the broadcast state of the node.
type Status struct {
	node *Node
}

func NewStatus(node *Node) *Status {
	return &Status{
		node: node,
	}
}

func (s *Status) Register(group *gin.RouterGroup) {
	group.GET("/known", s.knownRoute)
	group.GET("/peers", s.peersRoute)
	group.GET("/tracker", s.trackerRoute)
}

func (s *Status) knownRoute(c *gin.Context) {
	var known []protocol.Value
	if err := s.node.Inspect(c.Request.Context(), func(e *broadcast.Engine) {
		known = e.HandleRead()
	}); err != nil {
		s.inspectError(c, err)
		return
	}
	c.JSON(http.StatusOK, known)
}

func (s *Status) peersRoute(c *gin.Context) {
	var peers []broadcast.PeerStatus
	if err := s.node.Inspect(c.Request.Context(), func(e *broadcast.Engine) {
		peers = e.Peers()
	}); err != nil {
		s.inspectError(c, err)
		return
	}
	c.JSON(http.StatusOK, peers)
}

func (s *Status) trackerRoute(c *gin.Context) {
	c.JSON(http.StatusOK, s.node.TrackerStatus())
}

func (s *Status) inspectError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotInitialised) || errors.Is(err, ErrNodeClosed) {
		c.JSON(http.StatusServiceUnavailable, statuserr.ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusInternalServerError)
}

var _ status.Handler = &Status{}
