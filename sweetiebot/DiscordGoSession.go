package sweetiebot

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var errNotChannel = errors.New("string is not a valid channel")
var errNotRole = errors.New("string is not a valid role")
var errNotUser = errors.New("string is not a valid user")

// ChannelRegex matches a channel ping
var ChannelRegex = regexp.MustCompile("<#([0-9]+)>")

// RoleRegex matches a role ping
var RoleRegex = regexp.MustCompile("<@&([0-9]+)>")

// UserRegex matches a user ping, with or without the nickname marker
var UserRegex = regexp.MustCompile("<@!?([0-9]+)>")

// DiscordChannel stores a channel ID
type DiscordChannel string

// DiscordRole stores a role ID
type DiscordRole string

// DiscordUser stores a user ID
type DiscordUser string

// DiscordGuild stores a guild ID
type DiscordGuild string

const (
	ChannelEmpty     = DiscordChannel("")
	ChannelExclusion = DiscordChannel("!")
	RoleEmpty        = DiscordRole("")
	RoleExclusion    = DiscordRole("!")
	UserEmpty        = DiscordUser("")
	GuildEmpty       = DiscordGuild("")
)

// Display channel as a ping
func (ch DiscordChannel) Display() string {
	return fmt.Sprintf("<#%v>", string(ch))
}

// Display role as a ping
func (r DiscordRole) Display() string {
	return fmt.Sprintf("<@&%v>", string(r))
}

// Display user as a ping
func (u DiscordUser) Display() string {
	return fmt.Sprintf("<@%v>", string(u))
}

// Show channel name if available, or display ping
func (ch DiscordChannel) Show(info *GuildInfo) string {
	if channel, err := info.Bot.DG.State.Channel(string(ch)); err == nil {
		return "#" + channel.Name
	}
	return ch.Display()
}

// Show role name if available, or display ping
func (r DiscordRole) Show(info *GuildInfo) string {
	if role, err := info.Bot.DG.State.Role(info.ID, string(r)); err == nil {
		return "@" + role.Name
	}
	return r.Display()
}

func (ch DiscordChannel) String() string { return string(ch) }
func (r DiscordRole) String() string     { return string(r) }
func (u DiscordUser) String() string     { return string(u) }
func (g DiscordGuild) String() string    { return string(g) }

// Equals channel id
func (ch DiscordChannel) Equals(s string) bool {
	return ch != ChannelEmpty && string(ch) == s
}

// Equals role id
func (r DiscordRole) Equals(s string) bool {
	return r != RoleEmpty && string(r) == s
}

// Equals user id
func (u DiscordUser) Equals(s string) bool {
	return u != UserEmpty && string(u) == s
}

// Equals guild id
func (g DiscordGuild) Equals(s string) bool {
	return g != GuildEmpty && string(g) == s
}

// unmarshalSnowflake accepts both string and integer IDs, since old config files stored integers
func unmarshalSnowflake(d []byte) (string, error) {
	s := ""
	err := json.Unmarshal(d, &s)
	if err == nil {
		return s, nil
	}
	var i uint64
	if err = json.Unmarshal(d, &i); err != nil {
		return "", err
	}
	return strconv.FormatUint(i, 10), nil
}

// UnmarshalJSON is a custom unmarshal function for JSON
func (ch *DiscordChannel) UnmarshalJSON(d []byte) error {
	s, err := unmarshalSnowflake(d)
	if err == nil {
		*ch = DiscordChannel(s)
	}
	return err
}

// UnmarshalJSON is a custom unmarshal function for JSON
func (r *DiscordRole) UnmarshalJSON(d []byte) error {
	s, err := unmarshalSnowflake(d)
	if err == nil {
		*r = DiscordRole(s)
	}
	return err
}

func findChannel(name string, guild *discordgo.Guild) (r []*discordgo.Channel) {
	name = strings.ToLower(name)
	for _, v := range guild.Channels {
		if strings.ToLower(v.Name) == name {
			r = append(r, v)
		}
	}
	return
}

// FindRole returns all roles in the guild matching the name, ignoring case
func FindRole(name string, guild *discordgo.Guild) (r []*discordgo.Role) {
	name = strings.ToLower(name)
	for _, v := range guild.Roles {
		if strings.ToLower(v.Name) == name {
			r = append(r, v)
		}
	}
	return
}

func ambiguous(names []string) error {
	return errors.New("could be any of the following: " + strings.Join(names, ", "))
}

// ParseChannel resolves multiple different channel tagging formats
func ParseChannel(s string, guild *discordgo.Guild) (DiscordChannel, error) {
	if len(s) == 0 {
		return ChannelEmpty, nil
	}
	if s == "!" {
		return ChannelExclusion, nil
	}
	if s[0] == '<' {
		matches := ChannelRegex.FindStringSubmatch(s)
		if len(matches) < 2 || len(matches[1]) == 0 {
			return ChannelEmpty, errNotChannel
		}
		s = matches[1]
	} else if guild != nil {
		ch := findChannel(strings.TrimPrefix(s, "#"), guild)
		if len(ch) > 1 {
			join := make([]string, len(ch))
			for k, v := range ch {
				join[k] = v.Name + " (" + v.ID + ")"
			}
			return ChannelEmpty, ambiguous(join)
		}
		if len(ch) == 1 {
			s = ch[0].ID
		}
	}
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return ChannelEmpty, errNotChannel
	}
	return DiscordChannel(s), nil
}

// ParseRole resolves multiple different role tagging formats
func ParseRole(s string, guild *discordgo.Guild) (DiscordRole, error) {
	if len(s) == 0 {
		return RoleEmpty, nil
	}
	if s == "!" {
		return RoleExclusion, nil
	}
	if s[0] == '<' {
		matches := RoleRegex.FindStringSubmatch(s)
		if len(matches) < 2 || len(matches[1]) == 0 {
			return RoleEmpty, errNotRole
		}
		s = matches[1]
	} else if guild != nil {
		r := FindRole(strings.TrimPrefix(s, "@"), guild)
		if len(r) > 1 {
			join := make([]string, len(r))
			for k, v := range r {
				join[k] = v.Name + " (" + v.ID + ")"
			}
			return RoleEmpty, ambiguous(join)
		}
		if len(r) == 1 {
			s = r[0].ID
		}
	}
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return RoleEmpty, errNotRole
	}
	return DiscordRole(s), nil
}

// ParseUser resolves a ping, a raw ID, or a username or nickname of a cached guild member
func ParseUser(s string, info *GuildInfo) (DiscordUser, error) {
	if len(s) == 0 {
		return UserEmpty, errNotUser
	}
	if s[0] == '<' {
		matches := UserRegex.FindStringSubmatch(s)
		if len(matches) < 2 || len(matches[1]) == 0 {
			return UserEmpty, errNotUser
		}
		return DiscordUser(matches[1]), nil
	}
	if _, err := strconv.ParseUint(s, 10, 64); err == nil {
		return DiscordUser(s), nil
	}
	if info == nil {
		return UserEmpty, errNotUser
	}
	g, err := info.GetGuild()
	if err != nil {
		return UserEmpty, errNotUser
	}
	name := strings.ToLower(strings.TrimPrefix(s, "@"))
	found := []*discordgo.Member{}
	info.Bot.DG.State.RLock()
	for _, m := range g.Members {
		if m.User != nil && (strings.ToLower(m.User.Username) == name || strings.ToLower(m.Nick) == name) {
			found = append(found, m)
		}
	}
	info.Bot.DG.State.RUnlock()
	switch len(found) {
	case 0:
		return UserEmpty, errNotUser
	case 1:
		return DiscordUser(found[0].User.ID), nil
	}
	join := make([]string, len(found))
	for k, v := range found {
		join[k] = v.User.Username + " (" + v.User.ID + ")"
	}
	return UserEmpty, ambiguous(join)
}

// MemberHasRole returns true if the member has the role
func MemberHasRole(m *discordgo.Member, role DiscordRole) bool {
	for _, v := range m.Roles {
		if role.Equals(v) {
			return true
		}
	}
	return false
}

// GuildMemberPermissions computes the guild-wide permissions of a member, ignoring channel overrides
func GuildMemberPermissions(member *discordgo.Member, guild *discordgo.Guild) (perms int64) {
	if member.User != nil && member.User.ID == guild.OwnerID {
		return discordgo.PermissionAll
	}
	for _, role := range guild.Roles {
		if role.ID == guild.ID {
			perms |= role.Permissions
			break
		}
	}
	for _, role := range guild.Roles {
		for _, id := range member.Roles {
			if role.ID == id {
				perms |= role.Permissions
				break
			}
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		perms |= discordgo.PermissionAll
	}
	return
}

// IsDiscordError returns true if err is a REST error carrying the given discord error code
func IsDiscordError(err error, code int) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Message != nil && rest.Message.Code == code
}

// DiscordGoSession wraps the discordgo session, allowing us to extend it
type DiscordGoSession struct {
	*discordgo.Session
}

// GetMember attempts to get a member from the guild by checking the state first before making the REST API call.
func (s *DiscordGoSession) GetMember(userID DiscordUser, guildID string) (*discordgo.Member, error) {
	m, err := s.State.Member(guildID, userID.String())
	if err == nil {
		return m, nil
	}
	m, err = s.GuildMember(guildID, userID.String())
	if err == nil {
		m.GuildID = guildID
		s.State.MemberAdd(m)
	}
	return m, err
}

// UserHasAnyRole returns true if the user has any of the given roles. An empty map allows everyone, and a "!" entry inverts the check.
func (s *DiscordGoSession) UserHasAnyRole(user DiscordUser, guildID string, roles map[DiscordRole]bool) bool {
	if len(roles) == 0 {
		return true
	}
	_, reverse := roles[RoleExclusion]
	if m, err := s.GetMember(user, guildID); err == nil {
		for _, v := range m.Roles {
			if _, ok := roles[DiscordRole(v)]; ok {
				return !reverse
			}
		}
	}
	return reverse
}

// UserPermissions gets all permissions for a user, ignoring channel specific overrides
func (s *DiscordGoSession) UserPermissions(userID DiscordUser, guildID string) (int64, error) {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return 0, err
	}
	member, err := s.GetMember(userID, guildID)
	if err != nil {
		return 0, err
	}

	s.State.RLock()
	defer s.State.RUnlock()
	return GuildMemberPermissions(member, guild), nil
}
