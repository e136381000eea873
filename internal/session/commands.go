package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/memory"
	"github.com/vmunix/swiper/internal/reconcile"
)

type command struct {
	name    string
	aliases []string
	args    string
	desc    string
}

var commands = []command{
	{name: "download", aliases: []string{"get"}, args: "<content>",
		desc: "Downloads content and adds it to the library. Whatever can't start right away is queued."},
	{name: "search", args: "<content>",
		desc: "Lists torrents for a movie or episode so you can pick the one to download."},
	{name: "monitor", aliases: []string{"watch"}, args: "<content>",
		desc: "Keeps an eye out for content and downloads it once it's released. Monitored content is searched for once a day."},
	{name: "check",
		desc: "Searches for everything monitored right now instead of waiting for the daily search."},
	{name: "remove", aliases: []string{"delete"}, args: "<content>",
		desc: "Removes content from monitored and queued, and offers to abort it if it's downloading."},
	{name: "abort",
		desc: "Stops all of your current downloads."},
	{name: "status", aliases: []string{"progress", "state"},
		desc: "Shows what's downloading, queued and monitored, and what finished recently."},
	{name: "cancel",
		desc: "Drops whatever question I just asked."},
	{name: "help", aliases: []string{"commands"}, args: "[command]",
		desc: "Lists commands, or describes one."},
}

const contentForms = `<content> is a movie or show, for example:
  heat
  heat (1995)
  the office
  the office season 2
  the office s02e05`

func lookup(name string) (command, bool) {
	name = strings.ToLower(name)
	i := slices.IndexFunc(commands, func(c command) bool {
		return c.name == name || slices.Contains(c.aliases, name)
	})
	if i < 0 {
		return command{}, false
	}
	return commands[i], true
}

func (s *Swiper) execute(ctx context.Context, input string) (string, error) {
	name, args, _ := strings.Cut(input, " ")
	cmd, ok := lookup(name)
	if !ok {
		return "", inputErr(`Not recognized. Type "help" to see what I can do.`)
	}
	args = strings.TrimSpace(args)
	s.log.Debug("command", "command", cmd.name, "args", args)

	switch cmd.name {
	case "download":
		c, err := s.identify(ctx, args)
		if err != nil {
			return "", err
		}
		return s.QueueDownload(ctx, c, false)
	case "search":
		return s.search(ctx, args)
	case "monitor":
		return s.monitor(ctx, args)
	case "check":
		if s.checker == nil {
			return "Monitoring is not running.", nil
		}
		s.checker.CheckMonitored()
		return "Search in progress.", nil
	case "remove":
		return s.remove(ctx, args)
	case "abort":
		return s.abort(ctx), nil
	case "status":
		return s.status(ctx)
	case "cancel":
		return "", ErrCancelled
	default:
		return help(args), nil
	}
}

func help(args string) string {
	if args == "" {
		var b strings.Builder
		b.WriteString("Commands:\n")
		for _, c := range commands {
			b.WriteString("  " + strings.TrimSpace(c.name+" "+c.args) + "\n")
		}
		b.WriteString("\nType \"help <command>\" for details.")
		return b.String()
	}
	cmd, ok := lookup(args)
	if !ok {
		return fmt.Sprintf(`There's no %q command. Type "help" to list them.`, args)
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(cmd.name+" "+cmd.args) + "\n" + cmd.desc)
	if len(cmd.aliases) > 0 {
		b.WriteString("\nAlso: " + strings.Join(cmd.aliases, ", "))
	}
	if cmd.args == "<content>" {
		b.WriteString("\n\n" + contentForms)
	}
	return b.String()
}

func (s *Swiper) monitor(ctx context.Context, args string) (string, error) {
	c, err := s.identify(ctx, args)
	if err != nil {
		return "", err
	}
	if coll, ok := c.(*content.Collection); ok && coll.InitialType() == content.InitialSeries {
		if c, err = s.chooseMonitorScope(ctx, coll); err != nil {
			return "", err
		}
	}
	return s.monitorContent(ctx, c), nil
}

func (s *Swiper) monitorContent(ctx context.Context, c content.Content) string {
	return s.store.Update(ctx, s.ref.ID, memory.TargetMonitored, reconcile.MethodAdd, c).Message
}

// chooseMonitorScope asks how much of a series to monitor.
func (s *Swiper) chooseMonitorScope(ctx context.Context, coll *content.Collection) (content.Content, error) {
	const msg = `Type "series" to monitor the entire series, otherwise specify the season, or also the episode, you'd like monitored. To monitor new episodes only, type "new".`
	for {
		r, in, err := s.choose(ctx, msg, respSeries, respSeasonEp, respNew)
		if err != nil {
			return nil, err
		}
		switch r {
		case respSeries:
			return coll, nil
		case respNew:
			y, m, d := s.now().Date()
			morning := time.Date(y, m, d, 0, 0, 0, 0, s.now().Location())
			return filterEpisodes(coll, func(ep *content.Episode) bool {
				at, ok := ep.ReleaseDate()
				return ok && at.After(morning)
			}), nil
		}

		season, ep := captureSeason(in), captureEpisode(in)
		if season == 0 {
			s.send("I need a season number as well.")
			continue
		}
		if ep == 0 {
			if sc := seasonOf(coll, season); !sc.IsEmpty() {
				return sc, nil
			}
			s.send(fmt.Sprintf("%s doesn't have a season %d.", coll.Title(), season))
			continue
		}
		if found := findEpisode(coll, season, ep); found != nil {
			return found, nil
		}
		s.send(fmt.Sprintf("%s doesn't have season %d episode %d.", coll.Title(), season, ep))
	}
}

func (s *Swiper) remove(ctx context.Context, args string) (string, error) {
	c, err := s.identify(ctx, args)
	if err != nil {
		return "", err
	}
	mem, err := s.store.Read(ctx)
	if err != nil {
		return "", err
	}

	found, removed := false, false
	lists := []struct {
		target memory.Target
		items  []content.Content
	}{
		{memory.TargetMonitored, mem.Monitored},
		{memory.TargetQueued, mem.QueuedFor(s.ref.ID)},
	}
	for _, l := range lists {
		if !slices.ContainsFunc(l.items, func(e content.Content) bool { return content.Overlaps(e, c) }) {
			continue
		}
		found = true
		ok, err := s.confirm(ctx, fmt.Sprintf("Remove %s from %s?", c.Desc(), l.target))
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		res := s.store.Update(ctx, s.ref.ID, l.target, reconcile.MethodRemove, c)
		if res.Changed {
			removed = true
		} else {
			s.send(res.Message)
		}
	}

	for _, d := range s.registry.Matching(c) {
		if d.SessionID != s.ref.ID {
			continue
		}
		found = true
		ok, err := s.confirm(ctx, fmt.Sprintf("Abort downloading %s?", d.Video.Desc()))
		if err != nil {
			return "", err
		}
		if ok && s.cancelDownload(ctx, d) {
			s.freeSlots(1)
			removed = true
		}
	}

	switch {
	case !found:
		return fmt.Sprintf("%s is not being monitored, queued or downloaded.", c.Desc()), nil
	case !removed:
		return "Ok, I left everything as it was.", nil
	default:
		return "Removed.", nil
	}
}

func seasonOf(coll *content.Collection, season int) *content.Collection {
	var eps []*content.Episode
	for _, ep := range coll.Episodes() {
		if ep.Season() == season {
			eps = append(eps, ep)
		}
	}
	out := content.NewCollection(coll.Title(), eps, content.InitialSeason, season)
	out.SetOwner(coll.Owner())
	return out
}

func findEpisode(coll *content.Collection, season, number int) *content.Episode {
	for _, ep := range coll.Episodes() {
		if ep.Season() == season && ep.Number() == number {
			return ep
		}
	}
	return nil
}

func filterEpisodes(coll *content.Collection, keep func(*content.Episode) bool) *content.Collection {
	var eps []*content.Episode
	for _, ep := range coll.Episodes() {
		if keep(ep) {
			eps = append(eps, ep)
		}
	}
	out := content.NewCollection(coll.Title(), eps, coll.InitialType(), coll.InitialSeason())
	out.SetOwner(coll.Owner())
	return out
}
