package bot

// User-facing replies. Messages are sent with HTML parse mode; every
// interpolated value must go through html.EscapeString.
const (
	msgForbidden   = "⛔ You are not allowed to do that."
	msgInternal    = "Something went wrong. Please try again later."
	msgWelcome     = "👋 Welcome! Open a season link or use /list_seasons to browse."
	msgNotFound    = "❌ Season not found."
	msgLoading     = "🎬 <b>%s</b>\nLoading..."
	msgDeliveryCut = "⚠️ Delivery stopped after %d of %d files. Please try again later."
	msgNoSeasons   = "No seasons yet."
	msgSeasonList  = "🎬 Available seasons:"

	msgSubscribeFirst    = "⚠️ Join the following channels to use this bot:"
	msgSubscribeAlert    = "⚠️ Join the channels first!"
	msgSubscribeConfirm  = "✅ Subscription confirmed. You can use the bot now."
	msgNotSubscribed     = "❌ You have not joined every channel yet."
	msgCheckSubscription = "✅ Check"

	msgAddSeasonUsage  = "Usage: /add_season &lt;name&gt;"
	msgEditSeasonUsage = "Usage: /edit_season &lt;name&gt;"
	msgInvalidName     = "Season names may only use latin letters, digits, spaces, '-' and '_' (%d characters max)."
	msgSeasonExists    = "❗ This season already exists."
	msgSeasonCreated   = "📥 Send the videos now, one at a time. Send /done when finished.\nLink: %s"
	msgEditStarted     = "✏️ Send new videos for <b>%s</b>. Existing files stay. Send /done when finished."
	msgAskCaption      = "📝 Send a caption for this video, or /skip to leave it empty."
	msgFileAdded       = "✅ Part %d added. Send the next video or /done."
	msgSessionDone     = "✅ Finished <b>%s</b>: %d file(s) added.\nLink: %s"
	msgSeasonGone      = "❌ This season was deleted. The session has been closed."

	msgAdminList    = "🔧 Seasons (admin panel):"
	msgAdminActions = "🔧 <b>%s</b> (%d files)\nLink: %s"
	msgEditButton   = "✏️ Edit"
	msgDeleteButton = "🗑️ Delete"
	msgBackButton   = "🔙 Back"
	msgDeleted      = "✅ <b>%s</b> deleted."

	msgSetCaptionUsage = "Usage: /set_caption &lt;season&gt; &lt;part&gt; &lt;caption&gt;"
	msgCaptionUpdated  = "✅ Caption of part %d updated."
	msgCaptionMissing  = "❌ Season or part not found."

	msgAddChannelUsage    = "Usage: /add_channel &lt;channel_id&gt; [name]"
	msgRemoveChannelUsage = "Usage: /remove_channel &lt;channel_id&gt;"
	msgChannelAdded       = "✅ Channel %s (%s) added."
	msgChannelExists      = "❗ Channel %s is already listed."
	msgChannelRemoved     = "✅ Channel %s removed."
	msgChannelMissing     = "❌ Channel %s not found."
	msgNoChannels         = "📭 No required channels. Everyone can use the bot."
	msgChannelsHeader     = "📢 Required channels:\n\n"
	msgChannelLine        = "%d. %s\nID: %s\n\n"
)
