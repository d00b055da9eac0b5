package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/adwski/liveide-collab/backend/metrics"
	"github.com/adwski/liveide-collab/backend/model"
)

// AskHelp relays a help request to every live connection of the teacher.
// Misses are dropped without telling the requester.
func (svc *Service) AskHelp(ctx context.Context, conn model.ConnID, req model.AskHelp) {
	logger := svc.logger.With().
		Str("conn", conn).
		Str("student", req.Student).
		Str("teacher", req.Teacher).
		Logger()

	from, ok := svc.identity(conn)
	switch {
	case !ok:
		logger.Warn().Msg("help request from anonymous connection dropped")
		svc.metrics.HelpRequests.WithLabelValues(metrics.OutcomeRejected).Inc()
		return
	case req.Student == "":
		req.Student = from
	case req.Student != from:
		logger.Warn().Str("identity", from).Msg("help request on behalf of another identity dropped")
		svc.metrics.HelpRequests.WithLabelValues(metrics.OutcomeRejected).Inc()
		return
	}
	if req.Teacher == "" || req.Teacher == req.Student {
		logger.Warn().Msg("help request with invalid target dropped")
		svc.metrics.HelpRequests.WithLabelValues(metrics.OutcomeRejected).Inc()
		return
	}

	if svc.limiter != nil {
		allowed, err := svc.limiter.Allow(ctx, req.Student)
		if err != nil {
			logger.Error().Err(err).Msg("help request throttle unavailable")
		} else if !allowed {
			logger.Debug().Msg("help request throttled")
			svc.metrics.HelpRequests.WithLabelValues(metrics.OutcomeThrottled).Inc()
			return
		}
	}

	targets := svc.roster.Connections(req.Teacher)
	if len(targets) == 0 {
		logger.Debug().Msg("help request dropped, teacher is not connected")
		svc.metrics.HelpRequests.WithLabelValues(metrics.OutcomeNoTarget).Inc()
		return
	}
	n := svc.sendMany(targets, "", model.EventHelpRequest, req)
	svc.metrics.HelpRequests.WithLabelValues(metrics.OutcomeDelivered).Inc()
	logger.Debug().Int("delivered", n).Msg("help request forwarded")
}

// RespondHelp relays the teacher's decision to the student. An acceptance
// opens the room first; when the pair already has one, the response is a
// duplicate from another connection of the teacher and is dropped.
func (svc *Service) RespondHelp(_ context.Context, conn model.ConnID, resp model.HelpResponse) {
	logger := svc.logger.With().
		Str("conn", conn).
		Str("student", resp.Student).
		Str("teacher", resp.Teacher).
		Bool("accepted", resp.Accepted).
		Logger()

	from, ok := svc.identity(conn)
	switch {
	case !ok:
		logger.Warn().Msg("help response from anonymous connection dropped")
		return
	case resp.Teacher == "":
		resp.Teacher = from
	case resp.Teacher != from:
		logger.Warn().Str("identity", from).Msg("help response on behalf of another identity dropped")
		return
	}
	svc.metrics.HelpResponses.WithLabelValues(strconv.FormatBool(resp.Accepted)).Inc()

	students := svc.roster.Connections(resp.Student)
	if len(students) == 0 {
		logger.Debug().Msg("help response dropped, student is not connected")
		return
	}

	var (
		room   model.Room
		opened bool
	)
	if resp.Accepted {
		var err error
		room, err = svc.createRoom(
			model.Member{Identity: resp.Student, Conn: students[0]},
			model.Member{Identity: resp.Teacher, Conn: conn},
			resp.TeacherCode,
		)
		switch {
		case errors.Is(err, model.ErrRoomExists):
			logger.Debug().Msg("duplicate acceptance dropped, room is already open")
			return
		case err != nil:
			logger.Error().Err(err).Msg("failed to open room")
			return
		}
		opened = true
	}

	svc.sendMany(students, "", model.EventHelpResponseReceived, model.HelpResponseReceived{
		Teacher:     resp.Teacher,
		Accepted:    resp.Accepted,
		TeacherCode: resp.TeacherCode,
	})
	if opened {
		svc.announceRoom(room)
	}
	logger.Debug().Msg("help response forwarded")
}
