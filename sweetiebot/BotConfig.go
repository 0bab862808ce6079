package sweetiebot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"4d63.com/tz"
	"github.com/bwmarrin/discordgo"
	"gopkg.in/yaml.v3"
)

type ModuleID string
type CommandID string
type TimeLocation string

// AutoModConfig holds the rule thresholds used by the automod module. It doubles as the
// process-wide default that new guilds start from.
type AutoModConfig struct {
	CapsRatio      float64         `json:"capsratio" yaml:"capsratio"`
	SpamMessages   int             `json:"spammessages" yaml:"spammessages"`
	SpamWindow     int64           `json:"spamwindow" yaml:"spamwindow"`
	SpamTimeout    int64           `json:"spamtimeout" yaml:"spamtimeout"`
	NoticeDuration int64           `json:"noticeduration" yaml:"noticeduration"`
	BannedWords    map[string]bool `json:"bannedwords" yaml:"-"`
	LinkAllowlist  map[string]bool `json:"linkallowlist" yaml:"-"`
	InviteMarkers  map[string]bool `json:"invitemarkers" yaml:"-"`
}

// automodYAML is the on-disk shape of the defaults file, which uses lists instead of sets
type automodYAML struct {
	AutoModConfig `yaml:",inline"`
	BannedWords   []string `yaml:"bannedwords"`
	LinkAllowlist []string `yaml:"linkallowlist"`
	InviteMarkers []string `yaml:"invitemarkers"`
}

// BotConfig lists all bot configuration options, grouped into structs
type BotConfig struct {
	Version   int  `json:"version"`
	SetupDone bool `json:"setupdone"`
	Basic     struct {
		IgnoreInvalidCommands bool           `json:"ignoreinvalidcommands"`
		ModRole               DiscordRole    `json:"modrole"`
		ModChannel            DiscordChannel `json:"modchannel"`
		ListenToBots          bool           `json:"listentobots"`
		CommandPrefix         string         `json:"commandprefix"`
		Timezone              TimeLocation   `json:"timezone"`
	} `json:"basic"`
	Modules struct {
		Channels           map[ModuleID]map[DiscordChannel]bool `json:"modulechannels"`
		Disabled           map[ModuleID]bool                    `json:"moduledisabled"`
		CommandRoles       map[CommandID]map[DiscordRole]bool   `json:"commandroles"`
		CommandDisabled    map[CommandID]bool                   `json:"commanddisabled"`
		CommandPerDuration int                                  `json:"commandperduration"`
		CommandMaxDuration int64                                `json:"commandmaxduration"`
	} `json:"modules"`
	AutoMod AutoModConfig `json:"automod"`
	Log     struct {
		Cooldown int64          `json:"cooldown"`
		Channel  DiscordChannel `json:"logchannel"`
	} `json:"log"`
}

// ConfigHelp is a map of help strings for the configuration options above
var ConfigHelp = map[string]map[string]string{
	"basic": {
		"ignoreinvalidcommands": "If true, the bot won't display an error if a nonsensical command is used. This helps reduce confusion with other bots that use the same prefix.",
		"modrole":               "A moderator role shared by all moderators. Members with this role bypass the link rule and can use sensitive commands.",
		"modchannel":            "The channel moderators want to be notified on, such as when someone is timed out for spamming.",
		"listentobots":          "If true, processes messages from other bots and allows them to run commands. Defaults to false.",
		"commandprefix":         "Determines the SINGLE ASCII CHARACTER prefix used to denote bot commands. The default is `!`.",
		"timezone":              "Timezone location used when displaying moderation log timestamps, like `America/New_York`. The location is CASE-SENSITIVE.",
	},
	"modules": {
		"channels":           "A mapping of what channels a given module can operate on. If no mapping is given, a module operates on all channels. If `!` is included as a channel, it switches from a whitelist to a blacklist. Use `!setconfig modules.channels automod ! #yourchannel` to exempt a channel from automod.",
		"disabled":           "A list of disabled modules. This disables any hooks the modules normally process, and also disables all commands inside that module.",
		"commandroles":       "A map of which roles are allowed to run which command. Sensitive commands with no mapping can only be run by moderators and administrators.",
		"commanddisabled":    "A list of disabled commands. Administrators can still run disabled commands.",
		"commandperduration": "Maximum number of commands that can be run within `commandmaxduration` seconds. Default: 3",
		"commandmaxduration": "Default: 15. This means that by default, at most 3 commands can be run every 15 seconds.",
	},
	"automod": {
		"capsratio":      "If a message of at least 8 characters has a ratio of uppercase letters to total characters above this value, it is deleted. Must be between 0 and 1. Default: 0.7",
		"spammessages":   "Number of messages a user can send within `automod.spamwindow` seconds before they are timed out for spamming. Default: 5",
		"spamwindow":     "Length of the spam detection window in seconds. Default: 5",
		"spamtimeout":    "How many minutes a spammer is timed out for. Default: 5",
		"noticeduration": "How many seconds a warning notice stays in the channel before it deletes itself. Default: 5",
		"bannedwords":    "Any message containing one of these words (ignoring case) is deleted. Manage this with `!addbannedword` and `!removebannedword`.",
		"linkallowlist":  "Links containing any of these substrings are allowed. All other links are deleted unless the author is a moderator.",
		"invitemarkers":  "Substrings that mark a token as an invite link even without `http://` or `https://`.",
	},
	"log": {
		"cooldown": "The cooldown time for the bot to display an error message, in seconds, intended to prevent the bot from spamming itself. Default: 4",
		"channel":  "This is the channel where log output is sent.",
	},
}

func getConfigHelp(module string, option string) (string, bool) {
	x, ok := ConfigHelp[strings.ToLower(module)]
	if !ok {
		return "", false
	}
	s, b := x[strings.ToLower(option)]
	return s, b
}

// ConfigVersion is the latest version of the config file
var ConfigVersion = 2

var (
	errCapsRatio      = errors.New("the caps ratio must be between 0 and 1")
	errSpamMessages   = errors.New("the spam message threshold must be at least 2")
	errSpamWindow     = errors.New("the spam window must be between 1 and 3600 seconds")
	errSpamTimeout    = errors.New("the spam timeout must be between 1 and 40320 minutes (28 days)")
	errNoticeDuration = errors.New("the notice duration must be between 1 and 300 seconds")
	errCommandPrefix  = errors.New("the command prefix must be a single ASCII character")
)

// ValidateCapsRatio checks a caps ratio threshold
func ValidateCapsRatio(ratio float64) error {
	if !(ratio >= 0 && ratio <= 1) {
		return errCapsRatio
	}
	return nil
}

// ValidateSpamLimit checks the spam message threshold and window
func ValidateSpamLimit(messages int, window int64) error {
	if messages < 2 {
		return errSpamMessages
	}
	if window < 1 || window > 3600 {
		return errSpamWindow
	}
	return nil
}

// ValidateSpamTimeout checks a spam timeout in minutes. Discord caps timeouts at 28 days.
func ValidateSpamTimeout(minutes int64) error {
	if minutes < 1 || minutes > 28*24*60 {
		return errSpamTimeout
	}
	return nil
}

// Validate returns the first invalid automod setting
func (c *AutoModConfig) Validate() error {
	if err := ValidateCapsRatio(c.CapsRatio); err != nil {
		return err
	}
	if err := ValidateSpamLimit(c.SpamMessages, c.SpamWindow); err != nil {
		return err
	}
	if err := ValidateSpamTimeout(c.SpamTimeout); err != nil {
		return err
	}
	if c.NoticeDuration < 1 || c.NoticeDuration > 300 {
		return errNoticeDuration
	}
	return nil
}

// Clone returns a deep copy, so guilds never share the default maps
func (c AutoModConfig) Clone() AutoModConfig {
	c.BannedWords = cloneSet(c.BannedWords)
	c.LinkAllowlist = cloneSet(c.LinkAllowlist)
	c.InviteMarkers = cloneSet(c.InviteMarkers)
	return c
}

func cloneSet(m map[string]bool) map[string]bool {
	n := make(map[string]bool, len(m))
	for k, v := range m {
		n[k] = v
	}
	return n
}

// Validate checks every option that has constraints beyond its type
func (config *BotConfig) Validate() error {
	if len(config.Basic.CommandPrefix) != 1 || config.Basic.CommandPrefix[0] > 127 {
		return errCommandPrefix
	}
	if config.Basic.Timezone != "" {
		if _, err := tz.LoadLocation(string(config.Basic.Timezone)); err != nil {
			return fmt.Errorf("%s is not a valid timezone location: %w", config.Basic.Timezone, err)
		}
	}
	return config.AutoMod.Validate()
}

// DefaultAutoModConfig returns the built-in automod thresholds
func DefaultAutoModConfig() AutoModConfig {
	return AutoModConfig{
		CapsRatio:      0.7,
		SpamMessages:   5,
		SpamWindow:     5,
		SpamTimeout:    5,
		NoticeDuration: 5,
		BannedWords:    map[string]bool{},
		LinkAllowlist:  map[string]bool{},
		InviteMarkers: map[string]bool{
			"discord.gg/":            true,
			"discord.com/invite/":    true,
			"discordapp.com/invite/": true,
		},
	}
}

// LoadAutoModDefaults reads a YAML file of automod defaults on top of the built-in ones
func LoadAutoModDefaults(path string) (AutoModConfig, error) {
	defaults := DefaultAutoModConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return defaults, err
	}
	file := automodYAML{AutoModConfig: defaults}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return defaults, fmt.Errorf("parsing %s: %w", path, err)
	}
	config := file.AutoModConfig
	config.BannedWords = listToSet(file.BannedWords, defaults.BannedWords)
	config.LinkAllowlist = listToSet(file.LinkAllowlist, defaults.LinkAllowlist)
	config.InviteMarkers = listToSet(file.InviteMarkers, defaults.InviteMarkers)
	if err := config.Validate(); err != nil {
		return defaults, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func listToSet(list []string, fallback map[string]bool) map[string]bool {
	if list == nil {
		return cloneSet(fallback)
	}
	m := make(map[string]bool, len(list))
	for _, v := range list {
		if v = strings.ToLower(strings.TrimSpace(v)); len(v) > 0 {
			m[v] = true
		}
	}
	return m
}

// DefaultConfig returns a default BotConfig struct. We can't define this as a variable because you can't initialize nested structs in a sane way in Go
func DefaultConfig() *BotConfig {
	config := &BotConfig{
		Version:   ConfigVersion,
		SetupDone: false,
	}
	config.Basic.IgnoreInvalidCommands = false
	config.Basic.CommandPrefix = "!"
	config.Modules.CommandPerDuration = 3
	config.Modules.CommandMaxDuration = 15
	config.AutoMod = DefaultAutoModConfig()
	config.Log.Cooldown = 4
	config.FillConfig()
	return config
}

// FixRequest takes a request that is not fully qualified and attempts to find a fully qualified version
func FixRequest(arg string, t reflect.Value) (string, error) {
	args := strings.SplitN(strings.ToLower(arg), ".", 3)
	list := []string{}

	for i := 0; i < t.NumField(); i++ {
		if strings.ToLower(t.Type().Field(i).Name) == args[0] {
			return arg, nil
		}
	}

	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.Kind() == reflect.Struct {
			for j := 0; j < f.NumField(); j++ {
				if strings.ToLower(f.Type().Field(j).Name) == args[0] {
					list = append(list, t.Type().Field(i).Name)
				}
			}
		}
	}
	switch len(list) {
	case 0:
		return arg, nil
	case 1:
		return strings.ToLower(list[0]) + "." + arg, nil
	}
	for k := range list {
		list[k] += "." + args[0]
	}
	return "", errors.New("Could be any of the following:\n" + strings.Join(list, "\n"))
}

func setConfigValue(f reflect.Value, value string, info *GuildInfo) error {
	switch f.Interface().(type) {
	case string:
		if value == "\"\"" {
			value = ""
		}
		f.SetString(value)
		return nil
	case TimeLocation:
		value = strings.TrimSpace(value)
		if _, err := tz.LoadLocation(value); err != nil {
			return fmt.Errorf("%s is not a valid timezone location! The location is CASE-SENSITIVE.", value)
		}
		f.SetString(value)
		return nil
	case DiscordRole:
		g, _ := info.GetGuild()
		s, err := ParseRole(value, g)
		if err != nil {
			return err
		}
		f.SetString(s.String())
		return nil
	case DiscordChannel:
		g, _ := info.GetGuild()
		s, err := ParseChannel(value, g)
		if err != nil {
			return err
		}
		f.SetString(s.String())
		return nil
	case DiscordUser:
		s, err := ParseUser(value, info)
		if err != nil {
			return err
		}
		f.SetString(s.String())
		return nil
	case ModuleID:
		value = strings.ToLower(value)
		for _, v := range info.Modules {
			if value == strings.ToLower(v.Name()) {
				f.SetString(value)
				return nil
			}
		}
		return fmt.Errorf("%s is not a module name!", value)
	case CommandID:
		value = strings.ToLower(value)
		if _, ok := info.commands[CommandID(value)]; !ok {
			return fmt.Errorf("%s is not a command name!", value)
		}
		f.SetString(value)
		return nil
	}

	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		k, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return fmt.Errorf("%s is not an integer", value)
		}
		f.SetInt(k)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		k, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return fmt.Errorf("%s is not a positive integer", value)
		}
		f.SetUint(k)
	case reflect.Float32, reflect.Float64:
		k, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("%s is not a number", value)
		}
		f.SetFloat(k)
	case reflect.Bool:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true":
			f.SetBool(true)
		case "false":
			f.SetBool(false)
		default:
			return errors.New("must be set to either 'true' or 'false'")
		}
	default:
		return errors.New("that config option has an unknown type")
	}
	return nil
}

func deleteFromMapReflect(f reflect.Value, k reflect.Value) (string, bool) {
	if !f.MapIndex(k).IsValid() {
		return fmt.Sprint(k.Interface()) + " does not exist.", false
	}
	f.SetMapIndex(k, reflect.Value{})
	return "Deleted " + fmt.Sprint(k.Interface()), true
}

func setConfigKeyValue(f reflect.Value, key string, value string, info *GuildInfo) (string, bool) {
	k := reflect.New(f.Type().Key()).Elem()
	if err := setConfigValue(k, key, info); err != nil {
		return "Key error: " + err.Error(), false
	}
	if f.IsNil() {
		f.Set(reflect.MakeMap(f.Type()))
	}
	if len(value) == 0 {
		return deleteFromMapReflect(f, k)
	}
	v := reflect.New(f.Type().Elem()).Elem()
	if err := setConfigValue(v, value, info); err != nil {
		return "Value error: " + err.Error(), false
	}

	f.SetMapIndex(k, v)
	return fmt.Sprintf("%v: %v", k.Interface(), v.Interface()), true
}

func setConfigList(f reflect.Value, values []string, info *GuildInfo) (string, bool) {
	switch f.Kind() {
	case reflect.Slice:
		f.Set(reflect.MakeSlice(f.Type(), 0, len(values)))
		if len(values) > 0 && len(values[0]) > 0 {
			for _, value := range values {
				v := reflect.New(f.Type().Elem()).Elem()
				if err := setConfigValue(v, value, info); err != nil {
					return "Value error: " + err.Error(), false
				}
				f.Set(reflect.Append(f, v))
			}
		}
		return fmt.Sprint(f.Interface()), true
	case reflect.Map:
		if f.Type().Elem().Kind() != reflect.Bool {
			return "Map sent into list function!", false
		}
		f.Set(reflect.MakeMap(f.Type()))
		stripped := []string{}
		if len(values) > 0 && len(values[0]) > 0 {
			for _, value := range values {
				v := reflect.New(f.Type().Key()).Elem()
				if err := setConfigValue(v, value, info); err != nil {
					return "Value error: " + err.Error(), false
				}
				f.SetMapIndex(v, reflect.ValueOf(true))
				stripped = append(stripped, fmt.Sprint(v.Interface()))
			}
		}
		return "[" + strings.Join(stripped, ", ") + "]", true
	}
	return "Unknown list type!", false
}

func setConfigMapList(f reflect.Value, key string, values []string, info *GuildInfo) (string, bool) {
	if f.IsNil() {
		f.Set(reflect.MakeMap(f.Type()))
	}
	if len(key) == 0 {
		return "No key specified", false
	}
	k := reflect.New(f.Type().Key()).Elem()
	if err := setConfigValue(k, key, info); err != nil {
		return "Key error: " + err.Error(), false
	}
	if len(values) == 0 {
		return deleteFromMapReflect(f, k)
	}

	v := reflect.New(f.Type().Elem()).Elem()
	s, ok := setConfigList(v, values, info)
	if !ok {
		return s, false
	}
	f.SetMapIndex(k, v)
	return fmt.Sprintf("%v: %s", k, s), true
}

// cloneValue copies maps one level deep so a failed set can be rolled back
func cloneValue(f reflect.Value) reflect.Value {
	old := reflect.New(f.Type()).Elem()
	if f.Kind() != reflect.Map || f.IsNil() {
		old.Set(f)
		return old
	}
	old.Set(reflect.MakeMapWithSize(f.Type(), f.Len()))
	iter := f.MapRange()
	for iter.Next() {
		old.SetMapIndex(iter.Key(), iter.Value())
	}
	return old
}

// isListMap returns true for maps used as sets
func isListMap(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Elem().Kind() == reflect.Bool
}

// isMapList returns true for maps whose values are themselves lists
func isMapList(t reflect.Type) bool {
	return t.Kind() == reflect.Map && (t.Elem().Kind() == reflect.Map || t.Elem().Kind() == reflect.Slice)
}

func (config *BotConfig) setField(info *GuildInfo, f reflect.Value, name string, args []string, indices []int, message string) (string, bool) {
	switch {
	case isListMap(f.Type()) || f.Kind() == reflect.Slice:
		return setConfigList(f, args[1:], info)
	case isMapList(f.Type()):
		if len(indices) < 2 {
			return "No key parameter given", false
		}
		return setConfigMapList(f, strings.ToLower(args[1]), args[2:], info)
	case f.Kind() == reflect.Map:
		if len(indices) < 2 {
			return "No key parameter given", false
		}
		value := ""
		if len(indices) > 2 {
			value = message[indices[2]:]
		}
		return setConfigKeyValue(f, strings.ToLower(args[1]), value, info)
	case f.Kind() == reflect.Struct:
		return "That config option has an unknown type!", false
	}
	value := ""
	if len(indices) > 1 {
		value = message[indices[1]:]
	}
	if f.Kind() == reflect.Bool && len(value) == 0 {
		return "No value parameter given", false
	}
	if err := setConfigValue(f, value, info); err != nil {
		if f.Kind() == reflect.Bool {
			return name + " " + err.Error(), false
		}
		return "Error: " + err.Error(), false
	}
	return fmt.Sprint(f.Interface()), true
}

// SetConfig sets the given config option with the given value along with any extra parameters.
// If the new value fails validation, the old value is restored.
func (config *BotConfig) SetConfig(info *GuildInfo, args []string, indices []int, message string) (string, bool) {
	name := args[0]
	names := strings.SplitN(strings.ToLower(name), ".", 3)
	t := reflect.ValueOf(config).Elem()
	for i := 0; i < t.NumField(); i++ {
		if strings.ToLower(t.Type().Field(i).Name) != names[0] {
			continue
		}
		if len(names) < 2 {
			return "Can't set a configuration category! Use \"Category.Option\" to set a specific option.", false
		}
		if t.Field(i).Kind() != reflect.Struct {
			return "Not a configuration category!", false
		}
		category := t.Field(i)
		for j := 0; j < category.NumField(); j++ {
			if strings.ToLower(category.Type().Field(j).Name) != names[1] {
				continue
			}
			f := category.Field(j)
			old := cloneValue(f)
			s, ok := config.setField(info, f, name, args, indices, message)
			if !ok {
				f.Set(old)
				return s, false
			}
			if err := config.Validate(); err != nil {
				f.Set(old)
				return "Error: " + err.Error(), false
			}
			return s, true
		}
	}
	return "Could not find configuration parameter " + name + "!", false
}

func getConfigValue(f reflect.Value, state *discordgo.State, guild string) string {
	switch f.Interface().(type) {
	case DiscordRole:
		if r, err := state.Role(guild, f.String()); err == nil {
			return "@" + r.Name
		}
	case DiscordChannel:
		if ch, err := state.Channel(f.String()); err == nil {
			return "#" + ch.Name
		}
	case DiscordUser:
		if m, err := state.Member(guild, f.String()); err == nil {
			if len(m.Nick) > 0 {
				return m.Nick
			}
			return m.User.Username
		}
	}
	return fmt.Sprint(f.Interface())
}

func getConfigList(f reflect.Value, state *discordgo.State, guild string) (s []string) {
	switch f.Kind() {
	case reflect.Slice:
		for i := 0; i < f.Len(); i++ {
			s = append(s, getConfigValue(f.Index(i), state, guild))
		}
		sort.Strings(s)
	case reflect.Map:
		keys := f.MapKeys()
		if isListMap(f.Type()) {
			for _, key := range keys {
				s = append(s, getConfigValue(key, state, guild))
			}
			sort.Strings(s)
		} else {
			sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface()) })
			for _, key := range keys {
				s = append(s, "\""+getConfigValue(key, state, guild)+"\": "+getConfigValue(f.MapIndex(key), state, guild))
			}
		}
	}
	return
}

func getConfigMapList(f reflect.Value, state *discordgo.State, guild string) (s []string) {
	keys := f.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface()) })
	for _, key := range keys {
		v := f.MapIndex(key)
		k := getConfigValue(key, state, guild)

		if v.Len() == 1 {
			s = append(s, fmt.Sprintf("\"%s\": %s", k, strings.Join(getConfigList(v, state, guild), ", ")))
		} else {
			s = append(s, fmt.Sprintf("\"%s\": [%v items]", k, v.Len()))
		}
	}
	return
}

// GetConfig renders a config value as one or more lines
func (config *BotConfig) GetConfig(f reflect.Value, state *discordgo.State, guild string) (s []string) {
	switch {
	case isMapList(f.Type()):
		return getConfigMapList(f, state, guild)
	case f.Kind() == reflect.Map || f.Kind() == reflect.Slice:
		return getConfigList(f, state, guild)
	case f.Kind() == reflect.Struct:
		data, err := json.Marshal(f.Interface())
		if err != nil {
			return []string{"[JSON Error]"}
		}
		return []string{string(data)}
	}
	return []string{getConfigValue(f, state, guild)}
}

// IsModuleDisabled returns a string if a module is disabled
func (config *BotConfig) IsModuleDisabled(module Module) string {
	if _, ok := config.Modules.Disabled[ModuleID(strings.ToLower(module.Name()))]; ok {
		return " [disabled]"
	}
	return ""
}

// IsCommandDisabled returns a string if a command is disabled
func (config *BotConfig) IsCommandDisabled(command Command) string {
	if _, ok := config.Modules.CommandDisabled[CommandID(strings.ToLower(command.Info().Name))]; ok {
		return " [disabled]"
	}
	return ""
}

// FillConfig ensures root maps are not nil
func (config *BotConfig) FillConfig() {
	config.eachMap(func(f reflect.Value) {
		if f.IsNil() {
			f.Set(reflect.MakeMap(f.Type()))
		}
	})
}

func (config *BotConfig) eachMap(fn func(reflect.Value)) {
	t := reflect.ValueOf(config).Elem()
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.Kind() == reflect.Struct {
			for j := 0; j < f.NumField(); j++ {
				if f.Field(j).Kind() == reflect.Map {
					fn(f.Field(j))
				}
			}
		}
	}
}

// MigrateSettings loads a saved config on top of the defaults and upgrades it to the current version.
// Saved sets replace the default sets instead of merging with them.
func (guild *GuildInfo) MigrateSettings(data []byte) error {
	config := DefaultConfig()
	config.AutoMod = guild.Bot.AutoModDefaults.Clone()
	defaults := config.AutoMod
	config.Version = 0
	config.eachMap(func(f reflect.Value) { f.Set(reflect.Zero(f.Type())) })
	if err := json.Unmarshal(data, config); err != nil {
		return err
	}
	if config.AutoMod.BannedWords == nil {
		config.AutoMod.BannedWords = defaults.BannedWords
	}
	if config.AutoMod.LinkAllowlist == nil {
		config.AutoMod.LinkAllowlist = defaults.LinkAllowlist
	}
	config.FillConfig()

	if config.Version <= 1 {
		// Version 1 predates invite markers and self-deleting notices
		if len(config.AutoMod.InviteMarkers) == 0 {
			config.AutoMod.InviteMarkers = defaults.InviteMarkers
		}
		if config.AutoMod.NoticeDuration == 0 {
			config.AutoMod.NoticeDuration = defaults.NoticeDuration
		}
	}

	guild.Config = *config
	if guild.Config.Version != ConfigVersion {
		guild.Config.Version = ConfigVersion
		return guild.SaveConfig()
	}
	return nil
}

func getSubStruct(arg []string, f reflect.Value, j int, info *GuildInfo) []string {
	val := f.Field(j)
	if len(arg) > 2 {
		if val.Kind() != reflect.Map {
			return []string{"is not a map"}
		}
		k := reflect.New(val.Type().Key()).Elem()
		switch k.Kind() {
		case reflect.String:
			k.SetString(arg[2])
		case reflect.Int, reflect.Int64:
			i, _ := strconv.ParseInt(arg[2], 10, 64)
			k.SetInt(i)
		default:
			return []string{"is not a map"}
		}
		val = val.MapIndex(k)
		if !val.IsValid() || val.IsZero() {
			return []string{fmt.Sprintf("can't find %v", arg[2])}
		}
	}
	return info.Config.GetConfig(val, info.Bot.DG.State, info.ID)
}
