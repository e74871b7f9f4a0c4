// README: Status enums and transition tables for containers, bookings, street-turns and COD requests.
package workflow

type ContainerStatus string

const (
	ContainerAvailable             ContainerStatus = "AVAILABLE"
	ContainerAwaitingReuseApproval ContainerStatus = "AWAITING_REUSE_APPROVAL"
	ContainerAwaitingCodApproval   ContainerStatus = "AWAITING_COD_APPROVAL"
	ContainerAwaitingCodInfo       ContainerStatus = "AWAITING_COD_INFO"
	ContainerReuseRejected         ContainerStatus = "REUSE_REJECTED"
	ContainerCodRejected           ContainerStatus = "COD_REJECTED"
	ContainerOnGoingReuse          ContainerStatus = "ON_GOING_REUSE"
	ContainerAwaitingReusePayment  ContainerStatus = "AWAITING_REUSE_PAYMENT"
	ContainerAwaitingCodPayment    ContainerStatus = "AWAITING_COD_PAYMENT"
	ContainerOnGoingCod            ContainerStatus = "ON_GOING_COD"
	ContainerDepotProcessing       ContainerStatus = "DEPOT_PROCESSING"
	ContainerCompleted             ContainerStatus = "COMPLETED"
	ContainerExpired               ContainerStatus = "EXPIRED"
	ContainerPaymentCancelled      ContainerStatus = "PAYMENT_CANCELLED"
)

// ContainerTransitions is the container lifecycle as code. The self-loop on
// AWAITING_REUSE_APPROVAL admits additional street-turn requests.
var ContainerTransitions = map[ContainerStatus][]ContainerStatus{
	ContainerAvailable:             {ContainerAwaitingReuseApproval, ContainerAwaitingCodApproval},
	ContainerReuseRejected:         {ContainerAwaitingReuseApproval, ContainerAwaitingCodApproval},
	ContainerCodRejected:           {ContainerAwaitingReuseApproval, ContainerAwaitingCodApproval},
	ContainerAwaitingReuseApproval: {ContainerAwaitingReuseApproval, ContainerOnGoingReuse, ContainerReuseRejected, ContainerExpired, ContainerPaymentCancelled},
	ContainerAwaitingCodApproval:   {ContainerAwaitingCodPayment, ContainerOnGoingCod, ContainerCodRejected, ContainerAwaitingCodInfo, ContainerExpired, ContainerPaymentCancelled},
	ContainerAwaitingCodInfo:       {ContainerAwaitingCodApproval, ContainerExpired, ContainerPaymentCancelled},
	ContainerOnGoingReuse:          {ContainerAwaitingReusePayment, ContainerCompleted, ContainerExpired, ContainerPaymentCancelled},
	ContainerAwaitingReusePayment:  {ContainerCompleted, ContainerExpired, ContainerPaymentCancelled},
	ContainerAwaitingCodPayment:    {ContainerOnGoingCod, ContainerExpired, ContainerPaymentCancelled},
	ContainerOnGoingCod:            {ContainerDepotProcessing, ContainerExpired, ContainerPaymentCancelled},
	ContainerDepotProcessing:       {ContainerCompleted, ContainerPaymentCancelled},
}

// availableForRequests lists the statuses from which a new street-turn or COD
// request may start.
var availableForRequests = []ContainerStatus{
	ContainerAvailable,
	ContainerReuseRejected,
	ContainerCodRejected,
}

func (s ContainerStatus) AvailableForRequests() bool {
	return containsStatus(availableForRequests, s)
}

func CanContainerTransition(from, to ContainerStatus) bool {
	return containsStatus(ContainerTransitions[from], to)
}

type BookingStatus string

const (
	BookingAvailable        BookingStatus = "AVAILABLE"
	BookingAwaitingApproval BookingStatus = "AWAITING_APPROVAL"
	BookingConfirmed        BookingStatus = "CONFIRMED"
)

var BookingTransitions = map[BookingStatus][]BookingStatus{
	BookingAvailable:        {BookingAwaitingApproval},
	BookingAwaitingApproval: {BookingConfirmed, BookingAvailable},
}

func CanBookingTransition(from, to BookingStatus) bool {
	return containsStatus(BookingTransitions[from], to)
}

type StreetTurnStatus string

const (
	StreetTurnNone      StreetTurnStatus = ""
	StreetTurnPending   StreetTurnStatus = "PENDING"
	StreetTurnApproved  StreetTurnStatus = "APPROVED"
	StreetTurnDeclined  StreetTurnStatus = "DECLINED"
	StreetTurnCompleted StreetTurnStatus = "COMPLETED"
)

var StreetTurnTransitions = map[StreetTurnStatus][]StreetTurnStatus{
	StreetTurnPending:  {StreetTurnApproved, StreetTurnDeclined},
	StreetTurnApproved: {StreetTurnCompleted},
}

func CanStreetTurnTransition(from, to StreetTurnStatus) bool {
	return containsStatus(StreetTurnTransitions[from], to)
}

type CodStatus string

const (
	CodNone              CodStatus = ""
	CodPending           CodStatus = "PENDING"
	CodApproved          CodStatus = "APPROVED"
	CodPendingPayment    CodStatus = "PENDING_PAYMENT"
	CodDeclined          CodStatus = "DECLINED"
	CodAwaitingInfo      CodStatus = "AWAITING_INFO"
	CodPaid              CodStatus = "PAID"
	CodProcessingAtDepot CodStatus = "PROCESSING_AT_DEPOT"
	CodCompleted         CodStatus = "COMPLETED"
	CodExpired           CodStatus = "EXPIRED"
	CodReversed          CodStatus = "REVERSED"
)

var CodTransitions = map[CodStatus][]CodStatus{
	CodPending:           {CodApproved, CodPendingPayment, CodDeclined, CodAwaitingInfo, CodExpired, CodReversed},
	CodAwaitingInfo:      {CodPending, CodExpired, CodReversed},
	CodPendingPayment:    {CodPaid, CodReversed},
	CodPaid:              {CodProcessingAtDepot, CodReversed},
	CodApproved:          {CodProcessingAtDepot, CodReversed},
	CodProcessingAtDepot: {CodCompleted, CodReversed},
}

func CanCodTransition(from, to CodStatus) bool {
	return containsStatus(CodTransitions[from], to)
}

// Terminal reports whether no transition leaves s.
func (s CodStatus) Terminal() bool {
	return len(CodTransitions[s]) == 0
}

// expirable COD statuses are swept once expires_at has passed.
func (s CodStatus) expirable() bool {
	return s == CodPending || s == CodAwaitingInfo
}

func containsStatus[S ~string](set []S, s S) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
