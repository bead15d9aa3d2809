package conversation

// User-facing message bodies. Markdown (v1) throughout, matching what the
// gateway sends for menu renderings.

const courseDetailsText = `📚 **Course Details: %s**

Here's what you get:
- Full Syllabus Coverage
- 250+ High-Quality Video Lectures
- Previous Year Questions (PYQs) Solved
- Comprehensive Test Series
- Regular Quizzes to Test Your Knowledge
- Weekly Current Affairs Updates
- Workbook & Study Materials
`

const buyCourseText = `✅ **You are about to purchase: %s**

**Price: ₹%d**

By purchasing, you will get full access to our private channel which includes:
- Full syllabus lectures
- 250+ video lectures
- Weekly current affairs
- Workbook, Books, PYQs
- Full Test Series

Please proceed with the payment. If you have already paid, share the screenshot with us.
`

// HelpText is rendered by the /help command.
const HelpText = `👋 **Bot Help Guide**

Here's how to use me:

1️⃣ **Browse Courses**
- Use the buttons on the main menu to see details about each course, including features and price.

2️⃣ **Talk to the Admin**
- Select a course, then click **"💬 Talk to Admin"**.
- Type your message and send it. It will be delivered to the admin.
- When the admin replies, their message will be sent to you here. You can reply directly to their message to continue the conversation.

3️⃣ **Buy a Course**
- After selecting a course, click **"🛒 Buy Full Course"**.
- Click the **"💳 Pay Now"** button to go to the payment page.
- After paying, click **"✅ Already Paid? Share Screenshot"** and send a screenshot of your successful payment.
- The admin will verify it and send you the private channel link.

If you have any issues, feel free to use the "Talk to Admin" feature.
`

const (
	welcomeText      = "👋 Welcome, %s!\n\nI am your assistant for Mechanical Engineering courses. Please select a course to view details or use /help for instructions."
	selectCourseText = "Please select a course to view details:"
	anotherCourse    = "You can select another course:"
	emptyCatalog     = "No courses are listed right now. Please check back later."

	comingSoonText = "**%s** is launching soon! Stay tuned for updates."

	talkPromptText       = "Please type your message and send it. I will forward it to the admin."
	screenshotPromptText = "Please send the screenshot of your payment now."
	screenshotRetryText  = "That doesn't look like a photo. Please send the screenshot as a photo, or use /start to go back."
	textRetryText        = "Please send your message as text, or use /start to go back."

	messageSentText    = "✅ Your message has been sent to the admin. They will reply to you here shortly."
	screenshotSentText = "✅ Screenshot received! The admin will verify it and send you the course access link here soon."

	demoListText   = "Here are the free demo subjects for **%s**:\n\nPick a subject to receive the demo lecture:"
	demoEmptyText  = "No demo content available for this course."
	demoFailedText = "⚠️ Couldn't deliver that demo right now. Please try another subject or contact the admin."
	forwardFailed  = "⚠️ Couldn't reach the admin right now. Please try again in a moment."
)
