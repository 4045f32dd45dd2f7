package format

// VisualHelp is the static guidance shown when the user asks about scanning
// receipts or other order documents.
const VisualHelp = `📸 **VISUAL ORDER RECOGNITION** 📸

I can help you extract order information from images! Here's what you can do:

**What you can scan:**
• Order receipts and invoices
• Shipping labels and tracking numbers
• Product packaging and labels
• Order confirmation emails
• Purchase orders

**How it works:**
1. Go to the "Scan" tab in the app
2. Take a photo or upload an image
3. AI will automatically extract text and order details
4. Match with existing orders in our database
5. Get instant results and suggestions

**Features:**
• OCR text extraction with high accuracy
• Automatic order matching
• Confidence scoring
• Quality analysis
• Smart suggestions

**Supported formats:**
• JPEG, PNG, WebP images
• Maximum file size: 10MB
• Camera capture or gallery upload

Try it now! Navigate to the Scan tab and upload your order document.`
