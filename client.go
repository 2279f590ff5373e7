/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/Seednode/casebox/pkg/accuse"
	"github.com/Seednode/casebox/pkg/board"
	"github.com/Seednode/casebox/pkg/casefile"
	"github.com/Seednode/casebox/pkg/session"
	"github.com/Seednode/casebox/pkg/wire"
)

var (
	styleHeading = color.Style{color.FgCyan, color.OpBold}
	styleNotice  = color.Style{color.FgYellow}
	styleDenied  = color.Style{color.FgRed, color.OpBold}
	styleChat    = color.Style{color.FgMagenta}
	styleSubtle  = color.Style{color.FgGray}
	styleFound   = color.Style{color.FgGreen}
)

type clientOptions struct {
	server string
	room   string
	role   string
	caseID string
}

func newClientCmd() *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:           "client",
		Short:         "Join an investigation room from the terminal.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.Context(), opts)
		},
	}

	fs := cmd.Flags()

	fs.StringVarP(&opts.server, "server", "s", "http://localhost:8080", "relay server url")
	fs.StringVarP(&opts.room, "room", "r", "", "room id to join")
	fs.StringVar(&opts.role, "role", "player1", "detective slot to play (player1 or player2)")
	fs.StringVarP(&opts.caseID, "case", "c", "", "case to request if the room is new")

	_ = cmd.MarkFlagRequired("room")

	return cmd
}

// gameClient drives one detective's terminal session. All state mutation
// happens on the command/event loop goroutine; only stdin reading runs
// separately.
type gameClient struct {
	role     session.Role
	sess     *session.Session
	kase     *casefile.Case
	progress *board.Progress
	tracker  *accuse.Tracker
	notifier *session.Notifier

	// The relay's join broadcast includes ourselves, and it always precedes
	// our room-info reply, so the first player-joined event seen is our own.
	sawOwnJoin bool
}

func runClient(ctx context.Context, opts *clientOptions) error {
	catalog, err := casefile.Load()
	if err != nil {
		return err
	}

	role := session.Role(opts.role)
	if role != session.RolePlayer1 && role != session.RolePlayer2 {
		return fmt.Errorf("invalid role %q (want player1 or player2)", opts.role)
	}

	sess, err := session.Dial(ctx, opts.server, opts.room, role, opts.caseID)
	if err != nil {
		return err
	}
	defer sess.Close()

	kase := catalog.ByID(sess.CaseID())

	c := &gameClient{
		role:     role,
		sess:     sess,
		kase:     kase,
		progress: board.New(kase),
		tracker:  accuse.NewTracker(),
		notifier: session.NewNotifier(),
	}

	c.printBriefing()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	events := sess.Events()

	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.handleCommand(strings.TrimSpace(line)); quit {
				return nil
			}

		case ev, ok := <-events:
			if !ok {
				// Disconnected; keep playing offline against local state.
				events = nil
				continue
			}
			c.handleEvent(ev)
		}
	}
}

func (c *gameClient) printBriefing() {
	fmt.Println(styleHeading.Sprintf("%s (%s)", c.kase.Title, c.kase.Difficulty))
	fmt.Println(styleSubtle.Sprint(c.kase.Setting))
	fmt.Println()
	fmt.Println(c.kase.Briefing)
	fmt.Println()
	fmt.Printf("You are %s in room %s. Type %s for commands.\n",
		styleHeading.Sprint(c.role.Label()), c.sess.RoomID(), styleFound.Sprint("help"))
}

// pushSync relays the full local snapshot after a local mutation. Remote
// merges never push back; the partner already holds what they sent.
func (c *gameClient) pushSync() {
	if !c.progress.HasProgress() {
		return
	}

	if err := c.sess.SyncState(c.progress.Fragment()); err != nil {
		fmt.Println(styleSubtle.Sprint("(sync failed; playing offline)"))
	}
}

func (c *gameClient) handleEvent(ev session.Event) {
	switch ev.Type {
	case wire.EventStateUpdate:
		for _, clueID := range c.notifier.PartnerFinds(ev.Fragment) {
			name := clueID
			if clue, ok := c.kase.Clue(clueID); ok {
				name = clue.Name
			}
			fmt.Println(styleNotice.Sprintf("%s found a clue: %s", c.role.Partner().Label(), name))
		}

		before := c.progress.UnlockedSuspects()
		c.progress.MergeRemote(ev.Fragment)
		c.announceNewSuspects(before)

	case wire.EventAccused:
		c.tracker.ObservePartner(ev.SuspectID)
		c.reportAccusation(ev.SuspectID)

	case wire.EventChatMessage:
		fmt.Printf("%s %s\n", styleChat.Sprintf("[%s]", senderLabel(ev.Chat.Sender)), ev.Chat.Text)

	case wire.EventPlayerJoined:
		if !c.sawOwnJoin {
			c.sawOwnJoin = true
			return
		}
		fmt.Println(styleNotice.Sprint("Your partner is on the case."))

	case session.EventDisconnect:
		fmt.Println(styleDenied.Sprint("Lost connection to the relay; progress stays local."))
	}
}

func senderLabel(sender string) string {
	if role := session.Role(sender); role == session.RolePlayer1 || role == session.RolePlayer2 {
		return role.Label()
	}
	return sender
}

func (c *gameClient) announceNewSuspects(before []string) {
	seen := make(map[string]bool, len(before))
	for _, id := range before {
		seen[id] = true
	}

	for _, id := range c.progress.UnlockedSuspects() {
		if seen[id] {
			continue
		}
		name := id
		if s, ok := c.kase.Suspect(id); ok {
			name = s.Name
		}
		fmt.Println(styleNotice.Sprintf("New suspect identified: %s", name))
	}
}

func (c *gameClient) reportAccusation(suspectID string) {
	name := suspectID
	if s, ok := c.kase.Suspect(suspectID); ok {
		name = s.Name
	}

	switch c.tracker.State() {
	case accuse.Picking:
		fmt.Println(styleNotice.Sprintf("%s accuses %s. Commit your own pick with 'accuse <suspect>'.",
			c.role.Partner().Label(), name))
	case accuse.Disagreeing:
		fmt.Println(styleDenied.Sprintf("You and your partner disagree: they accuse %s.", name))
		fmt.Println("Use 'override' to file your own pick, or 'adopt' to accept theirs.")
	case accuse.Resolved:
		c.printVerdict()
	}
}

func (c *gameClient) printVerdict() {
	pick, ok := c.tracker.ResolvedPick()
	if !ok {
		return
	}

	name := pick
	if s, found := c.kase.Suspect(pick); found {
		name = s.Name
	}

	fmt.Println()
	fmt.Println(styleHeading.Sprintf("The accusation is filed: %s.", name))

	if c.tracker.Verdict(c.kase) {
		fmt.Println(styleFound.Sprint("Case closed. You got the right one."))
	} else {
		culprit := c.kase.TrueCulpritID
		if s, found := c.kase.Suspect(culprit); found {
			culprit = s.Name
		}
		fmt.Println(styleDenied.Sprintf("The real culprit, %s, walks free.", culprit))
	}
}

func (c *gameClient) handleCommand(line string) bool {
	if line == "" {
		return false
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		c.printHelp()
	case "look":
		c.cmdLook()
	case "find":
		c.cmdFind(args)
	case "clue":
		c.cmdClue(args)
	case "suspects":
		c.cmdSuspects()
	case "suspect":
		c.cmdSuspect(args)
	case "connect":
		c.cmdConnect(args, true)
	case "disconnect":
		c.cmdConnect(args, false)
	case "board":
		c.cmdBoard()
	case "accuse":
		c.cmdAccuse(args)
	case "override":
		c.cmdOverride()
	case "adopt":
		c.cmdAdopt()
	case "say":
		c.cmdSay(strings.TrimSpace(strings.TrimPrefix(line, "say")))
	case "chat":
		c.cmdChat()
	case "quit", "exit":
		return true
	default:
		fmt.Println(styleSubtle.Sprintf("Unknown command %q; try 'help'.", cmd))
	}

	return false
}

func (c *gameClient) printHelp() {
	fmt.Print(`look               list clue sites you can examine
find <clue-id>     examine a clue and add it to the shared board
clue <clue-id>     re-read a found clue
suspects           list identified suspects
suspect <id>       read a suspect's profile
connect <a> <b>    link two clues on the evidence board
disconnect <a> <b> unlink two clues
board              show the evidence board
accuse <suspect>   commit your accusation
override           file your own pick after a disagreement
adopt              accept your partner's pick after a disagreement
say <text>         message your partner
chat               show chat history
quit               leave the investigation
`)
}

// visible reports whether the local detective can examine a clue. Asymmetric
// visibility is what forces the two players to talk to each other.
func (c *gameClient) visible(clue casefile.Clue) bool {
	return clue.VisibleTo == casefile.VisibleToAll || string(clue.VisibleTo) == string(c.role)
}

func (c *gameClient) cmdLook() {
	for _, location := range c.kase.Locations {
		fmt.Println(styleHeading.Sprint(location))
		for _, clue := range c.kase.Clues {
			if clue.Location != location {
				continue
			}

			switch {
			case c.progress.ClueFound(clue.ID):
				fmt.Printf("  %s %s (%s)\n", styleFound.Sprint("✓"), clue.Name, clue.ID)
			case c.visible(clue):
				fmt.Printf("  • something to examine (%s)\n", clue.ID)
			default:
				fmt.Printf("  %s\n", styleSubtle.Sprint("• something only your partner can examine"))
			}
		}
	}
}

func (c *gameClient) cmdFind(args []string) {
	if len(args) != 1 {
		fmt.Println(styleSubtle.Sprint("usage: find <clue-id>"))
		return
	}

	clue, ok := c.kase.Clue(args[0])
	if !ok {
		fmt.Println(styleDenied.Sprintf("No such clue %q.", args[0]))
		return
	}

	if !c.visible(clue) && !c.progress.ClueFound(clue.ID) {
		fmt.Println(styleDenied.Sprint("You can't make sense of this one. Maybe your partner can."))
		return
	}

	before := c.progress.UnlockedSuspects()

	if c.progress.RecordClueFound(clue.ID) {
		c.notifier.ObserveLocal(clue.ID)

		c.showClue(clue)
		c.announceNewSuspects(before)

		c.pushSync()
		return
	}

	c.showClue(clue)
}

func (c *gameClient) cmdClue(args []string) {
	if len(args) != 1 {
		fmt.Println(styleSubtle.Sprint("usage: clue <clue-id>"))
		return
	}

	clue, ok := c.kase.Clue(args[0])
	if !ok || !c.progress.ClueFound(clue.ID) {
		fmt.Println(styleDenied.Sprint("Nothing on the board under that id."))
		return
	}

	c.showClue(clue)
}

func (c *gameClient) showClue(clue casefile.Clue) {
	fmt.Println(styleHeading.Sprintf("%s (%s)", clue.Name, clue.ID))
	fmt.Println(styleSubtle.Sprintf("%s · reliability: %s", clue.Location, clue.Reliability))
	fmt.Println(clue.Description)
}

func (c *gameClient) cmdSuspects() {
	ids := c.progress.UnlockedSuspects()
	if len(ids) == 0 {
		fmt.Println(styleSubtle.Sprint("No suspects identified yet."))
		return
	}

	for _, id := range ids {
		if s, ok := c.kase.Suspect(id); ok {
			fmt.Printf("%s (%s) — %s, %d\n", styleHeading.Sprint(s.Name), s.ID, s.Occupation, s.Age)
		}
	}
}

func (c *gameClient) cmdSuspect(args []string) {
	if len(args) != 1 {
		fmt.Println(styleSubtle.Sprint("usage: suspect <id>"))
		return
	}

	if !c.progress.SuspectUnlocked(args[0]) {
		fmt.Println(styleDenied.Sprint("Nobody on the board under that id."))
		return
	}

	s, ok := c.kase.Suspect(args[0])
	if !ok {
		fmt.Println(styleDenied.Sprint("Nobody on the board under that id."))
		return
	}

	fmt.Println(styleHeading.Sprintf("%s (%s)", s.Name, s.ID))
	fmt.Printf("%s, %d\n", s.Occupation, s.Age)
	fmt.Println(s.Profile)
	fmt.Printf("%s %s\n", styleSubtle.Sprint("Alibi:"), s.Alibi)
}

func (c *gameClient) cmdConnect(args []string, add bool) {
	if len(args) != 2 {
		fmt.Println(styleSubtle.Sprint("usage: connect <clue-id> <clue-id>"))
		return
	}

	for _, id := range args {
		if _, ok := c.kase.Clue(id); !ok {
			fmt.Println(styleDenied.Sprintf("No such clue %q.", id))
			return
		}
	}

	if add {
		c.progress.AddConnection(args[0], args[1])
		fmt.Println(styleFound.Sprintf("Linked %s and %s.", args[0], args[1]))
	} else {
		c.progress.RemoveConnection(args[0], args[1])
		fmt.Println(styleNotice.Sprintf("Unlinked %s and %s.", args[0], args[1]))
	}

	c.pushSync()
}

func (c *gameClient) cmdBoard() {
	fmt.Println(styleHeading.Sprintf("Evidence board — %d clues, %d links",
		len(c.progress.FoundClues()), len(c.progress.Connections())))

	for _, pair := range c.progress.Connections() {
		fmt.Printf("  %s ↔ %s\n", pair.A, pair.B)
	}
}

func (c *gameClient) cmdAccuse(args []string) {
	if len(args) != 1 {
		fmt.Println(styleSubtle.Sprint("usage: accuse <suspect-id>"))
		return
	}

	if c.tracker.State() != accuse.Picking {
		fmt.Println(styleDenied.Sprintf("Your accusation is already in (%s).", c.tracker.State()))
		return
	}

	if !c.progress.SuspectUnlocked(args[0]) {
		fmt.Println(styleDenied.Sprint("You can only accuse an identified suspect."))
		return
	}

	c.tracker.Select(args[0])

	pick, ok := c.tracker.Commit()
	if !ok {
		return
	}

	if err := c.sess.EmitAccuse(pick); err != nil {
		fmt.Println(styleSubtle.Sprint("(accusation not delivered; relay is down)"))
	}

	switch c.tracker.State() {
	case accuse.Committed:
		fmt.Println(styleNotice.Sprint("Accusation committed. Waiting on your partner."))
	case accuse.Disagreeing:
		c.reportAccusation(c.tracker.PartnerPick())
	case accuse.Resolved:
		c.printVerdict()
	}
}

func (c *gameClient) cmdOverride() {
	if !c.tracker.Override() {
		fmt.Println(styleSubtle.Sprint("There is no disagreement to override."))
		return
	}
	c.printVerdict()
}

func (c *gameClient) cmdAdopt() {
	if !c.tracker.Adopt() {
		fmt.Println(styleSubtle.Sprint("There is no disagreement to resolve."))
		return
	}
	c.printVerdict()
}

func (c *gameClient) cmdSay(text string) {
	if text == "" {
		fmt.Println(styleSubtle.Sprint("usage: say <text>"))
		return
	}

	if _, err := c.sess.SendChat(text); err != nil {
		fmt.Println(styleSubtle.Sprint("(message not delivered; relay is down)"))
		return
	}

	fmt.Printf("%s %s\n", styleChat.Sprintf("[%s]", c.role.Label()), text)
}

func (c *gameClient) cmdChat() {
	msgs := c.sess.Messages()
	if len(msgs) == 0 {
		fmt.Println(styleSubtle.Sprint("No messages yet."))
		return
	}

	for _, msg := range msgs {
		fmt.Printf("%s %s\n", styleChat.Sprintf("[%s]", senderLabel(msg.Sender)), msg.Text)
	}
}
