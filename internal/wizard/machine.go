package wizard

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jobmate/cancel_go_server/internal/model"
	"github.com/jobmate/cancel_go_server/internal/pkg/sanitize"
)

// State 向导步骤
type State string

const (
	StateInitial          State = "initial"
	StateJobStatus        State = "job_status"
	StateDownsell         State = "downsell"
	StateDownsellAccepted State = "downsell_accepted"
	StateUsing            State = "using"
	StateReasons          State = "reasons"
	StateFeedback         State = "feedback"
	StateConfirmation     State = "confirmation"
	StateCompleted        State = "completed"
)

// Event 驱动状态前进的操作
type Event string

const (
	EventFoundJob     Event = "found_job"
	EventStillLooking Event = "still_looking"
	EventNext         Event = "next"
	EventAcceptOffer  Event = "accept_offer"
	EventDeclineOffer Event = "decline_offer"
)

// MinFeedbackLen 自由文本门槛，按清洗后的 rune 数计
const MinFeedbackLen = 25

var (
	ErrInvalidEvent           = errors.New("当前步骤不支持该操作")
	ErrNoBackAction           = errors.New("当前步骤不能后退")
	ErrUnknownState           = errors.New("未知的向导状态")
	ErrDownsellNotAvailable   = errors.New("挽留报价不可用")
	ErrJobStatusIncomplete    = errors.New("请先回答归因问题和三个用量问题")
	ErrFeedbackTooShort       = errors.New("反馈内容至少25个字符")
	ErrUsingIncomplete        = errors.New("请先回答三个用量问题")
	ErrReasonIncomplete       = errors.New("请选择取消原因并补充足够的说明")
	ErrConfirmationIncomplete = errors.New("请回答签证相关的两个问题")
)

// Session 状态机判定用的记录快照。问卷字段取自草稿；
// ReasonCode/ReasonText/MaxPrice 在定稿请求里才出现，由调用方叠加。
type Session struct {
	Variant          string
	AcceptedDownsell bool
	Finalized        bool
	FoundJob         *bool
	AttributedToUs   *bool
	AppliedCount     string
	EmailedCount     string
	InterviewCount   string
	FeedbackText     string
	ReasonCode       string
	ReasonText       string
	MaxPrice         string
	HasLawyer        *bool
	VisaType         string
}

// NewSession 从取消记录构造会话快照
func NewSession(c *model.Cancellation) Session {
	return Session{
		Variant:          c.DownsellVariant,
		AcceptedDownsell: c.AcceptedDownsell,
		Finalized:        c.Finalized(),
		FoundJob:         c.FoundJob,
		AttributedToUs:   c.AttributedToUs,
		AppliedCount:     c.AppliedCount,
		EmailedCount:     c.EmailedCount,
		InterviewCount:   c.InterviewCount,
		FeedbackText:     c.Reason,
		ReasonText:       c.Reason,
		HasLawyer:        c.HasLawyer,
		VisaType:         c.VisaType,
	}
}

// ParseState 把外部传入的状态字符串转成 State
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateInitial, StateJobStatus, StateDownsell, StateDownsellAccepted,
		StateUsing, StateReasons, StateFeedback, StateConfirmation, StateCompleted:
		return State(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// Next 计算 event 作用在 state 上的下一个状态。带门槛的前进在门槛
// 未满足时返回原状态和对应校验错误，状态不动。
func Next(state State, event Event, s Session) (State, error) {
	switch state {
	case StateInitial:
		switch event {
		case EventFoundJob:
			return StateJobStatus, nil
		case EventStillLooking:
			// B 组且未接受过报价才会看到挽留屏
			if s.Variant == model.VariantB && !s.AcceptedDownsell {
				return StateDownsell, nil
			}
			return StateUsing, nil
		}

	case StateJobStatus:
		if event == EventNext {
			if err := gateJobStatus(s); err != nil {
				return state, err
			}
			return StateFeedback, nil
		}

	case StateFeedback:
		if event == EventNext {
			if err := gateFeedback(s); err != nil {
				return state, err
			}
			return StateConfirmation, nil
		}

	case StateConfirmation:
		if event == EventNext {
			if err := gateConfirmation(s); err != nil {
				return state, err
			}
			return StateCompleted, nil
		}

	case StateDownsell:
		switch event {
		case EventAcceptOffer:
			if s.Variant != model.VariantB || s.AcceptedDownsell {
				return state, ErrDownsellNotAvailable
			}
			return StateDownsellAccepted, nil
		case EventDeclineOffer:
			return StateUsing, nil
		}

	case StateUsing:
		switch event {
		case EventNext:
			if err := gateUsing(s); err != nil {
				return state, err
			}
			return StateReasons, nil
		case EventAcceptOffer:
			// 未接受报价的 B 组用户在用量问卷里随时可以接受
			if s.Variant == model.VariantB && !s.AcceptedDownsell {
				return StateDownsellAccepted, nil
			}
			return state, ErrDownsellNotAvailable
		}

	case StateReasons:
		if event == EventNext {
			if err := gateReasons(s); err != nil {
				return state, err
			}
			return StateCompleted, nil
		}
	}

	return state, ErrInvalidEvent
}

// Back 后退一步，和前进逻辑严格镜像。initial、completed 和
// downsell_accepted 没有后退动作。
func Back(state State, s Session) (State, error) {
	switch state {
	case StateInitial, StateCompleted, StateDownsellAccepted:
		return state, ErrNoBackAction

	case StateUsing:
		if s.Variant == model.VariantB && !s.AcceptedDownsell {
			return StateDownsell, nil
		}
		return StateInitial, nil

	case StateFeedback:
		if s.FoundJob != nil && *s.FoundJob {
			return StateJobStatus, nil
		}
		return StateInitial, nil

	case StateConfirmation:
		return StateFeedback, nil

	case StateJobStatus, StateDownsell, StateReasons:
		return StateInitial, nil
	}

	return state, fmt.Errorf("%w: %q", ErrUnknownState, string(state))
}

// Resume 根据草稿推算回访用户应落在哪一步，前端拿到后直接渲染，
// 不必重复分支逻辑。
func Resume(s Session) State {
	if s.Finalized {
		return StateCompleted
	}
	if s.AcceptedDownsell {
		return StateDownsellAccepted
	}
	if s.FoundJob == nil {
		return StateInitial
	}

	if *s.FoundJob {
		if gateJobStatus(s) != nil {
			return StateJobStatus
		}
		if gateFeedback(s) != nil {
			return StateFeedback
		}
		return StateConfirmation
	}

	// still_looking 分支：只要动过用量问卷就认为已经过了挽留屏
	if s.AppliedCount == "" && s.EmailedCount == "" && s.InterviewCount == "" &&
		s.Variant == model.VariantB {
		return StateDownsell
	}
	if gateUsing(s) != nil {
		return StateUsing
	}
	return StateReasons
}

// ValidateFoundJob 定稿前把 found_job 分支的全部门槛一次判完
func ValidateFoundJob(s Session) error {
	if err := gateJobStatus(s); err != nil {
		return err
	}
	if err := gateFeedback(s); err != nil {
		return err
	}
	return gateConfirmation(s)
}

// ValidateStillLooking 定稿前把 still_looking 分支的全部门槛一次判完
func ValidateStillLooking(s Session) error {
	if err := gateUsing(s); err != nil {
		return err
	}
	return gateReasons(s)
}

// ComposeReason 把原因码和补充信息拼成落库的原因文本。
// too_expensive 附带心理价位时生成 "Too expensive; willing to pay $N"。
func ComposeReason(code, text, maxPrice string) string {
	label := model.CancelReasonLabel(code)
	if code == model.ReasonTooExpensive {
		if price := sanitize.Text(maxPrice); price != "" {
			return fmt.Sprintf("%s; willing to pay $%s", label, price)
		}
		return label
	}

	detail := sanitize.Text(text)
	if detail == "" {
		return label
	}
	return label + ": " + detail
}

func gateJobStatus(s Session) error {
	if s.AttributedToUs == nil ||
		!model.ValidApplyRange(s.AppliedCount) ||
		!model.ValidApplyRange(s.EmailedCount) ||
		!model.ValidInterviewRange(s.InterviewCount) {
		return ErrJobStatusIncomplete
	}
	return nil
}

func gateFeedback(s Session) error {
	if utf8.RuneCountInString(sanitize.Text(s.FeedbackText)) < MinFeedbackLen {
		return ErrFeedbackTooShort
	}
	return nil
}

func gateUsing(s Session) error {
	if !model.ValidApplyRange(s.AppliedCount) ||
		!model.ValidApplyRange(s.EmailedCount) ||
		!model.ValidInterviewRange(s.InterviewCount) {
		return ErrUsingIncomplete
	}
	return nil
}

func gateReasons(s Session) error {
	if !model.ValidCancelReason(s.ReasonCode) {
		return ErrReasonIncomplete
	}
	if s.ReasonCode == model.ReasonTooExpensive {
		return nil
	}
	if utf8.RuneCountInString(sanitize.Text(s.ReasonText)) < MinFeedbackLen {
		return ErrReasonIncomplete
	}
	return nil
}

func gateConfirmation(s Session) error {
	if s.HasLawyer == nil || strings.TrimSpace(sanitize.Text(s.VisaType)) == "" {
		return ErrConfirmationIncomplete
	}
	return nil
}
