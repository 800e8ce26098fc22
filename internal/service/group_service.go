package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// GroupService implements the Connect GroupService
type GroupService struct {
	store storage.Store
}

var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

// AddMember adds a member to a group. The first member creates the group;
// after that only members may add others.
func (s *GroupService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errUnauthenticated)
	}
	slog.Info("AddMember request received",
		"group_id", req.Msg.GroupID,
		"member_id", req.Msg.UserID,
		"nickname", req.Msg.Nickname,
	)

	if strings.TrimSpace(req.Msg.GroupID) == "" || strings.TrimSpace(req.Msg.UserID) == "" || strings.TrimSpace(req.Msg.Nickname) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("group_id, user_id and nickname are required"))
	}

	roster, err := s.store.GetRoster(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("AddMember failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if len(roster) > 0 && !hasMember(roster, userID) {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("not a member of this group"))
	}
	if hasMember(roster, req.Msg.UserID) {
		return nil, connect.NewError(connect.CodeAlreadyExists, errors.New("user is already a member"))
	}

	member := models.RosterMember{UserID: req.Msg.UserID, Nickname: strings.TrimSpace(req.Msg.Nickname)}
	if err := s.store.AddGroupMember(ctx, req.Msg.GroupID, member); err != nil {
		slog.Error("AddMember failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("Member added", "group_id", req.Msg.GroupID, "member_id", member.UserID)
	return connect.NewResponse(&api.AddMemberResponse{}), nil
}

// ListMembers returns a group's roster to one of its members.
func (s *GroupService) ListMembers(ctx context.Context, req *connect.Request[api.ListMembersRequest]) (*connect.Response[api.ListMembersResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errUnauthenticated)
	}

	roster, err := s.store.GetRoster(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("ListMembers failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if !hasMember(roster, userID) {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("not a member of this group"))
	}

	members := make([]api.Member, len(roster))
	for i, m := range roster {
		members[i] = api.Member{UserID: m.UserID, Nickname: m.Nickname}
	}
	return connect.NewResponse(&api.ListMembersResponse{Members: members}), nil
}

func hasMember(roster []models.RosterMember, userID string) bool {
	for _, m := range roster {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
