package service

import "github.com/Gopher0727/MovieNight/middleware/jwt"

// Services is the set of use cases exposed to the HTTP layer.
type Services struct {
	Auth          IAuthService
	Groups        IGroupService
	Nights        IMovieNightService
	Reminders     *ReminderService
	Watchlist     IWatchlistService
	Votes         IVoteService
	Friends       IFriendService
	Activity      IActivityService
	Notifications INotificationService
	Members       *MembershipResolver
}

func NewServices(d *Deps, tokenManager *jwt.TokenManager) *Services {
	reminders := NewReminderService(d)
	return &Services{
		Auth:          NewAuthService(d, tokenManager),
		Groups:        NewGroupService(d),
		Nights:        NewMovieNightService(d, reminders),
		Reminders:     reminders,
		Watchlist:     NewWatchlistService(d),
		Votes:         NewVoteService(d),
		Friends:       NewFriendService(d),
		Activity:      NewActivityService(d),
		Notifications: NewNotificationService(d),
		Members:       d.Members,
	}
}
